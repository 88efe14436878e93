package api

import (
	"fmt"
	"mime"
	"net/http"
	"sort"
	"strconv"
	"strings"
)

// mediaNamespace is the vendor namespace every versioned media type is
// rooted under (spec §6: "application/vnd.<ns>.<kind>.<version>+json").
const mediaNamespace = "fluxweave"

// versionSet lists the versions a kind supports, highest first. A kind
// absent from this map has no versioned representation and always
// resolves to its single implicit version "v1".
var versionSet = map[string][]string{
	"workflow":    {"v1"},
	"config":      {"v1"},
	"trigger":     {"v1"},
	"workflowrun": {"v1"},
}

// NegotiatedVersion is the outcome of resolving a request's desired
// representation version for kind.
type NegotiatedVersion struct {
	Kind    string
	Version string
}

// ContentType renders the full vendor media type for this negotiation
// result, set on every successful response's Content-Type header.
func (n NegotiatedVersion) ContentType() string {
	return fmt.Sprintf("application/vnd.%s.%s.%s+json", mediaNamespace, n.Kind, n.Version)
}

// Negotiate resolves the representation version for kind from an explicit
// X-API-Version header ("<kind>.<version>") or, failing that, from the
// Accept header's preference list (RFC 7231 quality values), choosing the
// highest version this server supports. It returns an error when the
// caller pinned a version this server does not support, matching spec
// §6's "otherwise 400".
func Negotiate(r *http.Request, kind string) (NegotiatedVersion, error) {
	supported := versionSet[kind]
	if len(supported) == 0 {
		supported = []string{"v1"}
	}
	highest := supported[len(supported)-1]

	if pinned := strings.TrimSpace(r.Header.Get("X-API-Version")); pinned != "" {
		pinnedKind, version, ok := strings.Cut(pinned, ".")
		if !ok || pinnedKind != kind {
			return NegotiatedVersion{}, fmt.Errorf("api: X-API-Version %q does not name kind %q", pinned, kind)
		}
		if !supportsVersion(supported, version) {
			return NegotiatedVersion{}, fmt.Errorf("api: unsupported version %q for kind %q", version, kind)
		}
		return NegotiatedVersion{Kind: kind, Version: version}, nil
	}

	accept := strings.TrimSpace(r.Header.Get("Accept"))
	if accept == "" || accept == "*/*" {
		return NegotiatedVersion{Kind: kind, Version: highest}, nil
	}

	candidates := parseAccept(accept)
	for _, c := range candidates {
		if c.kind == "" {
			// A bare "application/json" or "*/*" entry accepts our default.
			return NegotiatedVersion{Kind: kind, Version: highest}, nil
		}
		if c.kind != kind {
			continue
		}
		if c.version == "" || supportsVersion(supported, c.version) {
			version := c.version
			if version == "" {
				version = highest
			}
			return NegotiatedVersion{Kind: kind, Version: version}, nil
		}
	}
	return NegotiatedVersion{}, fmt.Errorf("api: no acceptable representation of kind %q satisfies Accept %q", kind, accept)
}

func supportsVersion(supported []string, version string) bool {
	for _, v := range supported {
		if v == version {
			return true
		}
	}
	return false
}

type acceptEntry struct {
	kind    string
	version string
	q       float64
}

// parseAccept decodes an Accept header into candidates sorted by
// descending quality, extracting the vendor media type's <kind>/<version>
// when present and leaving both empty for generic types like
// "application/json" or "*/*".
func parseAccept(header string) []acceptEntry {
	parts := strings.Split(header, ",")
	entries := make([]acceptEntry, 0, len(parts))
	for _, part := range parts {
		mediaType, params, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		q := 1.0
		if raw, ok := params["q"]; ok {
			if parsed, err := strconv.ParseFloat(raw, 64); err == nil {
				q = parsed
			}
		}
		kind, version := vendorKindVersion(mediaType)
		entries = append(entries, acceptEntry{kind: kind, version: version, q: q})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].q > entries[j].q })
	return entries
}

// vendorKindVersion extracts <kind> and <version> from
// "application/vnd.<ns>.<kind>.<version>+json"; both are empty for any
// other media type.
func vendorKindVersion(mediaType string) (string, string) {
	const prefix = "application/vnd."
	const suffix = "+json"
	if !strings.HasPrefix(mediaType, prefix) || !strings.HasSuffix(mediaType, suffix) {
		return "", ""
	}
	body := strings.TrimSuffix(strings.TrimPrefix(mediaType, prefix), suffix)
	segments := strings.Split(body, ".")
	if len(segments) != 3 {
		return "", ""
	}
	return segments[1], segments[2]
}
