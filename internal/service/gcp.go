package service

import (
	"commsense_backend/internal/config"

	"google.golang.org/api/option"
)

// gcpOptions returns the client options shared by every Google Cloud client.
// With no explicit credentials the clients fall back to application default
// credentials.
func gcpOptions(cfg config.GCPConfig) []option.ClientOption {
	var opts []option.ClientOption
	switch {
	case cfg.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.ProjectID != "" {
		opts = append(opts, option.WithQuotaProject(cfg.ProjectID))
	}
	return opts
}
