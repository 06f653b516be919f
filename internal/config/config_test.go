package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	t.Run("non-existent config file", func(t *testing.T) {
		cfg, err := Load("invalid/path/to/config.yml")

		assert.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
		assert.Nil(t, cfg)
	})

	t.Run("invalid config file", func(t *testing.T) {
		data := `http_server:
  port: not number
mongo:
  uri: mongodb://test:27017
  db: test`

		f := createTempFile(t, []byte(data))
		cfg, err := Load(f.Name())

		assert.Error(t, err)
		assert.Nil(t, cfg)
	})

	t.Run("success", func(t *testing.T) {
		data := `base_url: https://qr.example.com
http_server:
  cert_file: ./crts/example.pem
  key_file: ./crts/example-key.pem
mongo:
  uri: mongodb://test:27017
  db: test
  query_timeout: 2s`

		f := createTempFile(t, []byte(data))
		cfg, err := Load(f.Name())

		assert.NoError(t, err)
		assert.NotNil(t, cfg)

		var wantCfg Config
		setDefaults(&wantCfg)

		wantCfg.BaseURL = "https://qr.example.com"
		wantCfg.HTTPServer.CertFile = "./crts/example.pem"
		wantCfg.HTTPServer.KeyFile = "./crts/example-key.pem"
		wantCfg.Mongo.URI = "mongodb://test:27017"
		wantCfg.Mongo.DB = "test"
		wantCfg.Mongo.QueryTimeout = 2 * time.Second

		assert.Equal(t, wantCfg, *cfg)
	})
}

func createTempFile(t testing.TB, data []byte) *os.File {
	t.Helper()

	f, err := os.CreateTemp("", "config.yml")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	t.Cleanup(func() {
		f.Close()
		os.Remove(f.Name())
	})

	if _, err := f.Write(data); err != nil {
		t.Fatalf("Failed to write to file: %v", err)
	}

	return f
}

func TestHTTPServer_Addr(t *testing.T) {
	s := HTTPServer{Port: 8080}

	assert.Equal(t, ":8080", s.Addr())
}
