package config

import (
	"os"
	"testing"
)

func TestFromEnvRequiresEndpoints(t *testing.T) {
	os.Unsetenv("LEASELOOP_ETCD_ENDPOINTS")
	os.Unsetenv("ETCD_ENDPOINTS")
	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected FromEnv to fail without ETCD_ENDPOINTS set")
	}
}

func TestFromEnvSplitsEndpointList(t *testing.T) {
	os.Setenv("ETCD_ENDPOINTS", "http://a:2379, http://b:2379")
	defer os.Unsetenv("ETCD_ENDPOINTS")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if len(cfg.EtcdURL) != 2 || cfg.EtcdURL[0] != "http://a:2379" || cfg.EtcdURL[1] != "http://b:2379" {
		t.Fatalf("unexpected endpoint split: %v", cfg.EtcdURL)
	}
}
