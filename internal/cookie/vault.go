package cookie

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
)

const (
	wereadHost  = "weread.qq.com"
	wereadAlias = "weread"
)

// VaultClient reads synced browser cookies from a CookieCloud-style vault.
type VaultClient struct {
	httpClient *http.Client
}

func NewVaultClient() *VaultClient {
	return &VaultClient{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Entry is one stored browser cookie.
type Entry struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain"`
}

type vaultRequest struct {
	Password string `json:"password"`
}

type vaultResponse struct {
	CookieData map[string][]Entry `json:"cookie_data"`
}

// Fetch posts the password to {endpoint}/get/{id} and extracts the WeRead
// cookie from the reply. An empty string with a nil error means the vault
// answered but held nothing usable.
func (c *VaultClient) Fetch(ctx context.Context, endpoint, id, password string) (string, error) {
	body, err := json.Marshal(vaultRequest{Password: password})
	if err != nil {
		return "", fmt.Errorf("marshal vault request: %w", err)
	}
	u := strings.TrimRight(endpoint, "/") + "/get/" + id
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("vault request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("vault %s: status %d: %s", id, resp.StatusCode, string(respBody))
	}

	var vr vaultResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return "", fmt.Errorf("decode vault response: %w", err)
	}
	return Select(vr.CookieData), nil
}

// Select picks WeRead cookies out of vault data: the canonical host key first,
// then the short alias key restricted to WeRead domains, then any key holding
// WeRead-domain entries. Keys are scanned in sorted order.
func Select(data map[string][]Entry) string {
	if len(data) == 0 {
		return ""
	}
	if s := join(data[wereadHost], hasNameAndValue); s != "" {
		return s
	}
	if s := join(data[wereadAlias], isWereadDomain); s != "" {
		return s
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if s := join(data[k], isWereadDomain); s != "" {
			return s
		}
	}
	return ""
}

func hasNameAndValue(e Entry) bool {
	return e.Name != "" && e.Value != ""
}

func isWereadDomain(e Entry) bool {
	return hasNameAndValue(e) && (e.Domain == wereadHost || e.Domain == "."+wereadHost)
}

func join(entries []Entry, keep func(Entry) bool) string {
	var parts []string
	for _, e := range entries {
		if keep(e) {
			parts = append(parts, e.Name+"="+e.Value)
		}
	}
	return strings.Join(parts, "; ")
}
