package acl

import (
	"encoding/hex"
	"encoding/xml"
	"os"
	"time"

	"github.com/infinoted/libinfinity/internal/xerr"
)

// Account storage format, spec §6:
//
//	<account id="…" name="…" first-seen="…" last-seen="…"
//	         password-salt="hex" password-hash="hex">
//	  <certificate>DN</certificate>*
//	</account>
//
// wrapped in a single root element so one file holds every account.
type accountListXML struct {
	XMLName  xml.Name         `xml:"account-list"`
	Accounts []accountFileXML `xml:"account"`
}

type accountFileXML struct {
	ID           string          `xml:"id,attr"`
	Name         string          `xml:"name,attr,omitempty"`
	FirstSeen    int64           `xml:"first-seen,attr"`
	LastSeen     int64           `xml:"last-seen,attr"`
	PasswordSalt string          `xml:"password-salt,attr,omitempty"`
	PasswordHash string          `xml:"password-hash,attr,omitempty"`
	Certificates []certificateEl `xml:"certificate"`
}

type certificateEl struct {
	DN string `xml:",chardata"`
}

// SaveAccounts writes accounts to path in the spec §6 format. Transient
// accounts (spec §3: "transient flag") are never written, so they do not
// survive a save/load cycle (see DESIGN.md, original_source supplement on
// infd-acl-account-info.c). This package does not track which connection
// a transient account belongs to, nor remove it from memory.
func SaveAccounts(path string, accounts []AccountInfo) error {
	doc := accountListXML{}
	for _, a := range accounts {
		if a.Transient {
			continue
		}
		entry := accountFileXML{
			ID:        a.ID,
			Name:      a.Name,
			FirstSeen: a.FirstSeen.Unix(),
			LastSeen:  a.LastSeen.Unix(),
		}
		if a.HasPassword {
			entry.PasswordSalt = hex.EncodeToString(a.Salt[:])
			entry.PasswordHash = hex.EncodeToString(a.PasswordHash[:])
		}
		for _, dn := range a.CertDNs {
			entry.Certificates = append(entry.Certificates, certificateEl{DN: dn})
		}
		doc.Accounts = append(doc.Accounts, entry)
	}
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return xerr.Wrap(xerr.DomainStorage, xerr.CodeIO, err)
	}
	if err := os.WriteFile(path, append([]byte(xml.Header), out...), 0600); err != nil {
		return xerr.Wrap(xerr.DomainStorage, xerr.CodeIO, err)
	}
	return nil
}

// LoadAccounts reads back a file written by SaveAccounts.
func LoadAccounts(path string) ([]AccountInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xerr.Wrap(xerr.DomainStorage, xerr.CodeIO, err)
	}
	var doc accountListXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, xerr.Wrap(xerr.DomainStorage, xerr.CodeIO, err)
	}
	out := make([]AccountInfo, 0, len(doc.Accounts))
	for _, e := range doc.Accounts {
		info := AccountInfo{
			ID:        e.ID,
			Name:      e.Name,
			FirstSeen: time.Unix(e.FirstSeen, 0).UTC(),
			LastSeen:  time.Unix(e.LastSeen, 0).UTC(),
		}
		for _, c := range e.Certificates {
			info.CertDNs = append(info.CertDNs, c.DN)
		}
		if e.PasswordSalt != "" && e.PasswordHash != "" {
			salt, err := hex.DecodeString(e.PasswordSalt)
			if err != nil || len(salt) != 32 {
				return nil, xerr.New(xerr.DomainStorage, xerr.CodeIO, "account "+e.ID+": malformed password-salt")
			}
			hash, err := hex.DecodeString(e.PasswordHash)
			if err != nil || len(hash) != 32 {
				return nil, xerr.New(xerr.DomainStorage, xerr.CodeIO, "account "+e.ID+": malformed password-hash")
			}
			copy(info.Salt[:], salt)
			copy(info.PasswordHash[:], hash)
			info.HasPassword = true
		}
		out = append(out, info)
	}
	return out, nil
}
