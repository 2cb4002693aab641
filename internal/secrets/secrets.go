// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads bibliographic API credentials. Each file in the
// secrets directory holds one value: the filename is the key and the
// trimmed contents are the value. An environment variable named
// BES_CATALOG_SECRET_<KEY> (upper case, dashes as underscores) fills a key
// no file provides.
//
// Recognized keys: ncbi-api-key, crossref-mailto.
package secrets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/pdiddy/bes-catalog/pkg/types"
)

// Key names.
const (
	NCBIAPIKey     = "ncbi-api-key"
	CrossRefMailto = "crossref-mailto"
)

// known lists keys that may come from the environment.
var known = []string{NCBIAPIKey, CrossRefMailto}

const envPrefix = "BES_CATALOG_SECRET_"

// Set maps key names to secret values.
type Set map[string]string

// Load reads every regular, non-hidden file in dir, then fills recognized
// keys that are still missing from the environment. A missing directory is
// not an error. Unreadable files are logged and skipped, and files readable
// by group or others are logged as a warning but still used.
func Load(dir string) (Set, error) {
	s := make(Set)

	entries, err := os.ReadDir(dir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || strings.HasPrefix(name, ".") {
			continue
		}

		path := filepath.Join(dir, name)
		if info, err := entry.Info(); err == nil && info.Mode().Perm()&0o077 != 0 {
			log.Warn().Str("secret", name).Str("mode", info.Mode().Perm().String()).
				Msg("secret file is readable by other users")
		}

		data, err := os.ReadFile(path)
		if err != nil {
			log.Warn().Err(err).Str("secret", name).Msg("could not read secret")
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			s[name] = value
		}
	}

	for _, key := range known {
		if _, ok := s[key]; ok {
			continue
		}
		if value := strings.TrimSpace(os.Getenv(EnvName(key))); value != "" {
			s[key] = value
		}
	}
	return s, nil
}

// EnvName returns the environment variable consulted for key.
func EnvName(key string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}

// Names returns the loaded key names in sorted order.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for k := range s {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// ApplyFetch fills source credentials that configuration left empty.
func (s Set) ApplyFetch(cfg *types.FetchConfig) {
	if cfg.PubMedAPIKey == "" {
		cfg.PubMedAPIKey = s[NCBIAPIKey]
	}
	if cfg.CrossRefMailto == "" {
		cfg.CrossRefMailto = s[CrossRefMailto]
	}
}
