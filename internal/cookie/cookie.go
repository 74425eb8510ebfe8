package cookie

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

// Environment variable names, shared with the --args launch payload.
const (
	EnvCookie        = "WEREAD_COOKIE"
	EnvVaultURL      = "CC_URL"
	EnvVaultID       = "CC_ID"
	EnvVaultPassword = "CC_PASSWORD"
)

// Launch holds credential settings supplied when the process started.
type Launch struct {
	Cookie        string `json:"WEREAD_COOKIE"`
	VaultURL      string `json:"CC_URL"`
	VaultID       string `json:"CC_ID"`
	VaultPassword string `json:"CC_PASSWORD"`
}

// ParseLaunchArgs decodes the JSON object passed with --args.
func ParseLaunchArgs(raw string) (Launch, error) {
	var l Launch
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return l, nil
	}
	if err := json.Unmarshal([]byte(raw), &l); err != nil {
		return Launch{}, fmt.Errorf("parse launch args: %w", err)
	}
	return l, nil
}

// Merge fills the gaps in l from other. The vault settings move as one
// unit: if l names any of them, none are taken from other.
func (l Launch) Merge(other Launch) Launch {
	if l.Cookie == "" {
		l.Cookie = other.Cookie
	}
	if l.VaultURL == "" && l.VaultID == "" && l.VaultPassword == "" {
		l.VaultURL = other.VaultURL
		l.VaultID = other.VaultID
		l.VaultPassword = other.VaultPassword
	}
	return l
}

func (l Launch) hasVault() bool {
	return l.VaultURL != "" && l.VaultID != "" && l.VaultPassword != ""
}

// NoCredentialError means every credential source came up empty.
type NoCredentialError struct {
	Tried []string
}

func (e *NoCredentialError) Error() string {
	return fmt.Sprintf("no weread cookie available (tried: %s); set %s or configure the cookie vault",
		strings.Join(e.Tried, ", "), EnvCookie)
}

// Fetcher pulls a cookie string out of a remote vault.
type Fetcher interface {
	Fetch(ctx context.Context, endpoint, id, password string) (string, error)
}

// Resolver finds a session cookie by walking its sources in priority order.
type Resolver struct {
	Launch Launch
	Vault  Fetcher
	Getenv func(string) string
	Logger *slog.Logger
}

func NewResolver(launch Launch, vault Fetcher, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		Launch: launch,
		Vault:  vault,
		Getenv: os.Getenv,
		Logger: logger,
	}
}

// Resolve returns the first cookie produced by, in order: the launch cookie,
// the vault named at launch, the vault named in the environment, and the
// environment cookie. A vault lookup cut short by ctx ends the chain with
// ctx's error instead of falling through to a lower source.
func (r *Resolver) Resolve(ctx context.Context) (string, error) {
	getenv := r.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	log := r.Logger
	if log == nil {
		log = slog.Default()
	}

	var tried []string

	tried = append(tried, "launch cookie")
	if c := strings.TrimSpace(r.Launch.Cookie); c != "" {
		log.Debug("cookie resolved", "source", "launch")
		return c, nil
	}

	tried = append(tried, "launch vault")
	if r.Launch.hasVault() {
		if c := r.fromVault(ctx, log, "launch", r.Launch.VaultURL, r.Launch.VaultID, r.Launch.VaultPassword); c != "" {
			return c, nil
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
	}

	tried = append(tried, "env vault")
	envVault := Launch{
		VaultURL:      getenv(EnvVaultURL),
		VaultID:       getenv(EnvVaultID),
		VaultPassword: getenv(EnvVaultPassword),
	}
	if envVault.hasVault() {
		if c := r.fromVault(ctx, log, "env", envVault.VaultURL, envVault.VaultID, envVault.VaultPassword); c != "" {
			return c, nil
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
	}

	tried = append(tried, "env cookie")
	if c := strings.TrimSpace(getenv(EnvCookie)); c != "" {
		log.Debug("cookie resolved", "source", "env")
		return c, nil
	}

	return "", &NoCredentialError{Tried: tried}
}

func (r *Resolver) fromVault(ctx context.Context, log *slog.Logger, source, endpoint, id, password string) string {
	if r.Vault == nil {
		return ""
	}
	c, err := r.Vault.Fetch(ctx, endpoint, id, password)
	if err != nil {
		log.Warn("cookie vault lookup failed", "source", source, "error", err)
		return ""
	}
	if c == "" {
		log.Warn("cookie vault has no weread cookie", "source", source)
		return ""
	}
	log.Debug("cookie resolved", "source", source+" vault")
	return c
}

var (
	vidRe  = regexp.MustCompile(`wr_vid=([^;]+)`)
	skeyRe = regexp.MustCompile(`wr_skey=([^;]+)`)
)

// Diagnosis summarizes the identity fields found in a cookie.
type Diagnosis struct {
	VID     string `json:"wr_vid,omitempty"`
	HasSkey bool   `json:"has_wr_skey"`
}

// Diagnose extracts wr_vid and checks for wr_skey. It never fails.
func Diagnose(cookie string) Diagnosis {
	var d Diagnosis
	if m := vidRe.FindStringSubmatch(cookie); len(m) > 1 {
		d.VID = strings.TrimSpace(m[1])
	}
	if m := skeyRe.FindStringSubmatch(cookie); len(m) > 1 && strings.TrimSpace(m[1]) != "" {
		d.HasSkey = true
	}
	return d
}
