package docModel

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"path/filepath"
	"strings"
	"time"
)

type Domain string

const (
	DomainRetail    Domain = "retail"
	DomainMedical   Domain = "medical"
	DomainFinance   Domain = "finance"
	DomainLegal     Domain = "legal"
	DomainEducation Domain = "education"
	DomainDefault   Domain = "default"
)

// DocumentIdentity scopes the index cache and the conversation memory.
type DocumentIdentity struct {
	OwnerId     string `json:"owner_id"`
	DocumentRef string `json:"document_ref"`
	Domain      Domain `json:"domain"`
}

func NewIdentity(ownerId string, documentRef string, domain string) DocumentIdentity {
	return DocumentIdentity{
		OwnerId:     strings.TrimSpace(ownerId),
		DocumentRef: NormalizeRef(documentRef),
		Domain:      Domain(strings.ToLower(strings.TrimSpace(domain))),
	}
}

// NormalizeRef cleans local paths and canonicalises the scheme/host of URLs,
// so two spellings of the same document share one cache entry.
func NormalizeRef(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if IsRemoteRef(ref) {
		u, err := url.Parse(ref)
		if err != nil {
			return ref
		}
		u.Scheme = strings.ToLower(u.Scheme)
		u.Host = strings.ToLower(u.Host)
		u.Fragment = ""
		return u.String()
	}
	return filepath.Clean(ref)
}

func IsRemoteRef(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func (d DocumentIdentity) Valid() bool {
	return d.OwnerId != "" && d.DocumentRef != ""
}

// Key is the identity key; the domain label is deliberately not part of it.
func (d DocumentIdentity) Key() string {
	return d.OwnerId + "::" + d.DocumentRef
}

// StorageKey is a file- and collection-name safe form of Key.
func (d DocumentIdentity) StorageKey() string {
	sum := sha256.Sum256([]byte(d.Key()))
	return hex.EncodeToString(sum[:])[:32]
}

func (d DocumentIdentity) DisplayName() string {
	if IsRemoteRef(d.DocumentRef) {
		if u, err := url.Parse(d.DocumentRef); err == nil {
			return filepath.Base(u.Path)
		}
	}
	return filepath.Base(d.DocumentRef)
}

type Page struct {
	Number  int    `json:"number"`
	Content string `json:"content"`
	OCR     bool   `json:"ocr"`
}

type Chunk struct {
	Text     string `json:"content"`
	Source   string `json:"source"`
	Sequence int    `json:"sequence"`
	Offset   int    `json:"offset"`
	PageNum  int    `json:"page_num"`
}

type ScoredChunk struct {
	Chunk Chunk
	Score float32
}

type Turn struct {
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	At       time.Time `json:"at"`
}

type ModelConfig struct {
	Provider          string   `json:"provider"`
	ModelId           string   `json:"model_id"`
	Persona           string   `json:"persona"`
	Temperature       float32  `json:"temperature"`
	SupportsStreaming bool     `json:"supports_streaming"`
	ExtractionFields  []string `json:"extraction_fields"`
}

type FallbackDecision struct {
	IsWeak bool
	Reason string
}

type HistoryRecord struct {
	OwnerId     string    `json:"owner_id"`
	DocumentRef string    `json:"document_ref"`
	Question    string    `json:"question"`
	Answer      string    `json:"answer"`
	Domain      Domain    `json:"domain"`
	Fallback    bool      `json:"fallback"`
	CreatedAt   time.Time `json:"created_at"`
}
