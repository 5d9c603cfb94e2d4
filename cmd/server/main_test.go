package main

import (
	"strings"
	"testing"
)

func TestRunReturnsStartupErrors(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "bad locations",
			env:  map[string]string{"LOCATIONS": " , "},
			want: "invalid LOCATIONS",
		},
		{
			name: "bad portal url",
			env:  map[string]string{"LOCATIONS": "22", "PORTAL_BASE_URL": "not a url"},
			want: "invalid portal configuration",
		},
		{
			name: "unreachable broker",
			env:  map[string]string{"LOCATIONS": "22", "MQTT_BROKER": "tcp://127.0.0.1:1"},
			want: "failed to initialize MQTT client",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			t.Setenv("CLICKHOUSE_ENABLED", "false")
			t.Setenv("PORTAL_BASE_URL", "")
			for k, v := range c.env {
				t.Setenv(k, v)
			}
			err := run()
			if err == nil || !strings.Contains(err.Error(), c.want) {
				t.Fatalf("expected %q error, got %v", c.want, err)
			}
		})
	}
}
