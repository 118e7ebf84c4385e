package config

import "testing"

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestResolve_Defaults(t *testing.T) {
	cfg := Resolve(envOf(nil))

	if cfg.ObjectStore.Enabled {
		t.Error("object store should be disabled without an endpoint")
	}
	if cfg.ObjectStore.Port != 9000 {
		t.Errorf("object store port = %d, want 9000", cfg.ObjectStore.Port)
	}
	if cfg.ObjectStore.AccessKey != "admin" || cfg.ObjectStore.SecretKey != "admin123" {
		t.Errorf("object store credentials = %q/%q, want admin/admin123", cfg.ObjectStore.AccessKey, cfg.ObjectStore.SecretKey)
	}
	if cfg.ObjectStore.Bucket != "videos" {
		t.Errorf("bucket = %q, want videos", cfg.ObjectStore.Bucket)
	}
	if cfg.ObjectStore.Driver != DriverS3 {
		t.Errorf("driver = %q, want %q", cfg.ObjectStore.Driver, DriverS3)
	}

	db := cfg.Database
	if db.Host != "db" || db.User != "root" || db.Password != "root" || db.DBName != "vigila" || db.Port != 5432 {
		t.Errorf("database defaults = %+v", db)
	}
	if got := cfg.Server.Addr(); got != "0.0.0.0:4000" {
		t.Errorf("listen addr = %q, want 0.0.0.0:4000", got)
	}
	if cfg.Ingest.OrphanPolicy != OrphanKeep {
		t.Errorf("orphan policy = %q, want keep", cfg.Ingest.OrphanPolicy)
	}
}

func TestResolve_PrimaryWinsOverAlias(t *testing.T) {
	cfg := Resolve(envOf(map[string]string{
		"S3_ENDPOINT":      "http://primary:9000",
		"MINIO_ENDPOINT":   "http://alias:9000",
		"S3_PORT":          "9100",
		"MINIO_PORT":       "9200",
		"MINIO_ACCESS_KEY": "minio-key",
		"PGHOST":           "pg-native",
		"DB_HOST":          "pg-alias",
		"DB_USER":          "app",
		"PGPORT":           "6543",
	}))

	if !cfg.ObjectStore.Enabled {
		t.Fatal("object store should be enabled")
	}
	if cfg.ObjectStore.Host != "primary" {
		t.Errorf("host = %q, want primary", cfg.ObjectStore.Host)
	}
	if cfg.ObjectStore.Port != 9100 {
		t.Errorf("port = %d, want 9100", cfg.ObjectStore.Port)
	}
	if cfg.ObjectStore.AccessKey != "minio-key" {
		t.Errorf("access key = %q, want alias value", cfg.ObjectStore.AccessKey)
	}
	if cfg.Database.Host != "pg-native" {
		t.Errorf("db host = %q, want pg-native", cfg.Database.Host)
	}
	if cfg.Database.User != "app" {
		t.Errorf("db user = %q, want app", cfg.Database.User)
	}
	if cfg.Database.Port != 6543 {
		t.Errorf("db port = %d, want 6543", cfg.Database.Port)
	}
}

func TestResolve_AliasEndpointEnablesStore(t *testing.T) {
	cfg := Resolve(envOf(map[string]string{"MINIO_ENDPOINT": "storage"}))
	if !cfg.ObjectStore.Enabled || cfg.ObjectStore.Host != "storage" {
		t.Errorf("object store = %+v, want enabled host storage", cfg.ObjectStore)
	}
}

func TestResolve_InvalidNumbersFallBack(t *testing.T) {
	cfg := Resolve(envOf(map[string]string{
		"S3_PORT": "not-a-port",
		"PGPORT":  "x",
	}))
	if cfg.ObjectStore.Port != 9000 {
		t.Errorf("port = %d, want default 9000", cfg.ObjectStore.Port)
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("db port = %d, want default 5432", cfg.Database.Port)
	}
}

func TestResolve_DriverAndOrphanPolicy(t *testing.T) {
	cfg := Resolve(envOf(map[string]string{"S3_DRIVER": "MinIO", "ORPHAN_POLICY": "queue"}))
	if cfg.ObjectStore.Driver != DriverMinIO {
		t.Errorf("driver = %q, want minio", cfg.ObjectStore.Driver)
	}
	if cfg.Ingest.OrphanPolicy != OrphanQueue {
		t.Errorf("orphan policy = %q, want queue", cfg.Ingest.OrphanPolicy)
	}

	cfg = Resolve(envOf(map[string]string{"S3_DRIVER": "gcs", "ORPHAN_POLICY": "reconcile"}))
	if cfg.ObjectStore.Driver != DriverS3 {
		t.Errorf("unknown driver should fall back to s3, got %q", cfg.ObjectStore.Driver)
	}
	if cfg.Ingest.OrphanPolicy != OrphanKeep {
		t.Errorf("unknown policy should fall back to keep, got %q", cfg.Ingest.OrphanPolicy)
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"http://storage:9000", "storage"},
		{"https://minio.example.com", "minio.example.com"},
		{"storage:9000", "storage"},
		{"storage", "storage"},
		{"http://storage:9000/some/path", "storage"},
		{"minio.internal/bucket", "minio.internal"},
		{"[::1]:9000", "::1"},
		{"  http://storage  ", "storage"},
		{"http://", ""},
	}
	for _, tt := range tests {
		if got := NormalizeEndpoint(tt.in); got != tt.want {
			t.Errorf("NormalizeEndpoint(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolve_EmptyNormalizedEndpointDisablesStore(t *testing.T) {
	cfg := Resolve(envOf(map[string]string{"S3_ENDPOINT": "http://"}))
	if cfg.ObjectStore.Enabled {
		t.Error("endpoint without a host should leave the object store disabled")
	}
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5432, User: "root", Password: "p@ss", DBName: "vigila", SSLMode: "disable"}
	want := "postgres://root:p%40ss@db:5432/vigila?sslmode=disable"
	if got := c.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}

func TestEndpoint(t *testing.T) {
	c := ObjectStoreConfig{Host: "storage", Port: 9000}
	if got := c.Endpoint(); got != "http://storage:9000" {
		t.Errorf("Endpoint() = %q", got)
	}
	c.UseSSL = true
	if got := c.Endpoint(); got != "https://storage:9000" {
		t.Errorf("Endpoint() with SSL = %q", got)
	}
}
