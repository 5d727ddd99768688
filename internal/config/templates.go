package config

import (
	"fmt"
	"os"
)

// Template returns a commented phonebookd config with every key set to its
// default.
func Template() string {
	return daemonTemplate
}

func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(daemonTemplate), 0o600)
}

const daemonTemplate = `# phonebookd configuration
name = "phonebook"

# framed TCP command transport; "" disables it
tcp_addr = "127.0.0.1:9301"

# HTTP API (/command, /response, /health, /metrics); "" disables it
http_addr = "127.0.0.1:9300"

# bytes per response chunk on both transports
chunk_size = 256
max_frame_bytes = 65536

cors_origins = ["http://localhost:3000"]
shutdown_timeout = "5s"

# PEM files; set both to serve TLS on both listeners
tls_cert_file = ""
tls_key_file = ""
`
