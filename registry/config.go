package registry

import (
	"strconv"
	"strings"

	"github.com/dnfcore/dnfcore/repo"
)

// splitMulti splits a key's value on the separators a continued or
// comma/space-delimited .repo value can use (';' from the continuation
// pre-filter, ',', and bare whitespace), dropping empty fields.
func splitMulti(value string) []string {
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return r == ';' || r == ',' || r == '\n' || r == '\r' || r == ' ' || r == '\t'
	})
	out := fields[:0]
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func parseBool(value string, def bool) bool {
	value = strings.TrimSpace(strings.ToLower(value))
	switch value {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	default:
		return def
	}
}

func parseInt(value string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return def
	}
	return v
}

func parseInt64(value string, def int64) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return def
	}
	return v
}

// sectionDefaults are the [main] section's overrides, applied to every
// repo section that doesn't set the same key itself (spec.md §4.8, "the
// global [main] section ... overrides defaults").
type sectionDefaults struct {
	gpgCheck       *bool
	repoGPGCheck   *bool
	cost           *int
	metadataExpire *int64
}

func newSectionDefaults(keys map[string]string) sectionDefaults {
	var d sectionDefaults
	if v, ok := keys["gpgcheck"]; ok {
		b := parseBool(v, false)
		d.gpgCheck = &b
	}
	if v, ok := keys["repo_gpgcheck"]; ok {
		b := parseBool(v, false)
		d.repoGPGCheck = &b
	}
	if v, ok := keys["cost"]; ok {
		c := parseInt(v, 1000)
		d.cost = &c
	}
	if v, ok := keys["metadata_expire"]; ok {
		e := parseInt64(v, 172800)
		d.metadataExpire = &e
	}
	return d
}

// configFromSection builds one repo.Config from a [section]'s keys,
// falling back to main's defaults and then this package's own stock
// defaults (dnf's: cost 1000, metadata_expire 48h, priority 99).
func configFromSection(id string, keys map[string]string, main sectionDefaults) repo.Config {
	cfg := repo.Config{
		ID:             id,
		Name:           keys["name"],
		Cost:           1000,
		Priority:       99,
		MetadataExpire: 172800,
		Sync:           repo.SyncTryCache,
		Kind:           repo.KindRegular,
		Enabled:        true,
	}

	if main.cost != nil {
		cfg.Cost = *main.cost
	}
	if main.metadataExpire != nil {
		cfg.MetadataExpire = *main.metadataExpire
	}
	if main.gpgCheck != nil {
		cfg.GPGCheck = *main.gpgCheck
	}
	if main.repoGPGCheck != nil {
		cfg.RepoGPGCheck = *main.repoGPGCheck
	}

	if v, ok := keys["baseurl"]; ok {
		cfg.BaseURLs = splitMulti(v)
	}
	if v, ok := keys["metalink"]; ok {
		cfg.Metalink = v
	}
	if v, ok := keys["mirrorlist"]; ok {
		cfg.MirrorList = v
	}
	if v, ok := keys["cost"]; ok {
		cfg.Cost = parseInt(v, cfg.Cost)
	}
	if v, ok := keys["priority"]; ok {
		cfg.Priority = parseInt(v, cfg.Priority)
	}
	if v, ok := keys["gpgcheck"]; ok {
		cfg.GPGCheck = parseBool(v, cfg.GPGCheck)
	}
	if v, ok := keys["repo_gpgcheck"]; ok {
		cfg.RepoGPGCheck = parseBool(v, cfg.RepoGPGCheck)
	}
	if v, ok := keys["gpgkey"]; ok {
		cfg.GPGKeys = splitMulti(v)
	}
	if v, ok := keys["metadata_expire"]; ok {
		if strings.TrimSpace(v) == "-1" {
			cfg.MetadataExpire = -1
		} else {
			cfg.MetadataExpire = parseInt64(v, cfg.MetadataExpire)
		}
	}
	if v, ok := keys["enabled"]; ok {
		cfg.Enabled = parseBool(v, true)
	}

	return cfg
}
