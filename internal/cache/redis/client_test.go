package redis

import "testing"

func TestClientConfigOptions(t *testing.T) {
	opts, err := ClientConfig{URL: "rediss://:pw@cache.internal:6380/2", PoolSize: 7, Addr: "ignored:1"}.options()
	if err != nil {
		t.Fatalf("options() error = %v", err)
	}
	if opts.Addr != "cache.internal:6380" || opts.DB != 2 || opts.Password != "pw" || opts.PoolSize != 7 {
		t.Errorf("url options = addr %q db %d pool %d", opts.Addr, opts.DB, opts.PoolSize)
	}
	if opts.TLSConfig == nil {
		t.Error("rediss url did not enable TLS")
	}

	opts, err = ClientConfig{Addr: "localhost:6379", TLSEnabled: true}.options()
	if err != nil {
		t.Fatalf("options() error = %v", err)
	}
	if opts.Addr != "localhost:6379" || opts.TLSConfig == nil {
		t.Errorf("field options = %+v", opts)
	}

	if _, err := (ClientConfig{URL: "http://nope"}).options(); err == nil {
		t.Error("options() accepted a non-redis url")
	}
}
