package config

import "testing"

func validBase() Config {
	return Config{
		App:   AppConfig{Env: "local", Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "pbx", SSLMode: ""},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{JWTSecret: "secret"},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresSSLModeAndCarrier(t *testing.T) {
	c := validBase()
	c.App.Env = "production"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE and carrier credentials")
	}
}

func TestValidate_LocalDefaults(t *testing.T) {
	c := validBase()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	if c.Twilio.ConferenceWaitURL == "" {
		t.Fatalf("expected hold music default")
	}
	if c.Sweep.RingingTimeout <= 0 || c.Sweep.Interval <= 0 {
		t.Fatalf("expected sweeper defaults, got %+v", c.Sweep)
	}
}

func TestValidate_RoutingNumberDefaults(t *testing.T) {
	c := validBase()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Twilio.OperatorNumber != DefaultOperatorNumber {
		t.Fatalf("operator = %q, want default", c.Twilio.OperatorNumber)
	}
	if c.Twilio.CallerID != DefaultCallerID {
		t.Fatalf("caller id = %q, want default", c.Twilio.CallerID)
	}

	c = validBase()
	c.Twilio.OperatorNumber = "+15550001111"
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Twilio.OperatorNumber != "+15550001111" {
		t.Fatalf("override lost: %q", c.Twilio.OperatorNumber)
	}
}
