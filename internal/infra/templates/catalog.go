// Package templates renders owner notices, attorney referrals and board mail
// from a YAML catalogue of Markdown text/templates.
package templates

import (
	_ "embed"
	"fmt"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"

	"condo_collections/internal/domain/notification"
)

//go:embed default_notices.yaml
var defaultCatalog []byte

// Source is one subject/body pair as written in the catalogue.
type Source struct {
	Subject string `yaml:"subject"`
	Body    string `yaml:"body"`
}

// CatalogFile mirrors the YAML layout.
type CatalogFile struct {
	OwnerNotices     map[notification.NoticeTier]Source `yaml:"owner_notices"`
	AttorneyReferral Source                             `yaml:"attorney_referral"`
	BoardDigest      Source                             `yaml:"board_digest"`
	BoardAlert       Source                             `yaml:"board_alert"`
}

type pair struct {
	subject *template.Template
	body    *template.Template
}

// Catalog holds parsed templates, ready to execute.
type Catalog struct {
	owner    map[notification.NoticeTier]pair
	referral pair
	digest   pair
	alert    pair
}

var requiredOwnerTiers = []notification.NoticeTier{
	notification.TierCourtesy30Day,
	notification.TierLateFee60Day,
	notification.TierFinal90Day,
}

// LoadCatalog reads the catalogue at path, or the embedded default when path
// is empty.
func LoadCatalog(path string) (*Catalog, error) {
	raw := defaultCatalog
	if path != "" {
		var err error
		raw, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read notice templates: %w", err)
		}
	}
	return ParseCatalog(raw)
}

// ParseCatalog parses and validates a YAML catalogue.
func ParseCatalog(raw []byte) (*Catalog, error) {
	var file CatalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to decode notice templates: %w", err)
	}

	c := &Catalog{owner: make(map[notification.NoticeTier]pair)}
	for _, tier := range requiredOwnerTiers {
		src, ok := file.OwnerNotices[tier]
		if !ok {
			return nil, fmt.Errorf("notice templates: missing owner notice %q", tier)
		}
		p, err := parsePair(string(tier), src)
		if err != nil {
			return nil, err
		}
		c.owner[tier] = p
	}

	var err error
	if c.referral, err = parsePair("attorney_referral", file.AttorneyReferral); err != nil {
		return nil, err
	}
	if c.digest, err = parsePair("board_digest", file.BoardDigest); err != nil {
		return nil, err
	}
	if c.alert, err = parsePair("board_alert", file.BoardAlert); err != nil {
		return nil, err
	}
	return c, nil
}

func parsePair(name string, src Source) (pair, error) {
	if src.Subject == "" || src.Body == "" {
		return pair{}, fmt.Errorf("notice templates: %s needs both subject and body", name)
	}
	subject, err := template.New(name + ".subject").Option("missingkey=error").Parse(src.Subject)
	if err != nil {
		return pair{}, fmt.Errorf("notice templates: %s subject: %w", name, err)
	}
	body, err := template.New(name + ".body").Option("missingkey=error").Parse(src.Body)
	if err != nil {
		return pair{}, fmt.Errorf("notice templates: %s body: %w", name, err)
	}
	return pair{subject: subject, body: body}, nil
}
