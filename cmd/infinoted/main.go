// Command infinoted is the reference daemon from spec §6: it loads a
// key/certificate pair, opens the directory tree and account store under
// --root-directory, and binds a TCP listener. Accepted connections are
// logged; they are not connected to the directory tree.
// Flag parsing follows the teacher's cmd/server/main.go pattern (small
// getEnv-style helpers layered under stdlib flag, no CLI framework — none
// appears anywhere in the retrieved pack for this domain) extended with a
// config-file search order the teacher's single-binary daemon didn't need.
package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"flag"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/infinoted/libinfinity/internal/acl"
	"github.com/infinoted/libinfinity/internal/directory"
	"github.com/infinoted/libinfinity/internal/ioloop"
	"github.com/infinoted/libinfinity/internal/transport"
	"github.com/infinoted/libinfinity/pkg/logger"
)

// config mirrors the CLI surface spec §6 lists for the reference daemon.
type config struct {
	KeyFile         string
	CertificateFile string
	CertChainFile   string
	CAListFile      string
	Port            int
	SecurityPolicy  string
	CreateKey       bool
	CreateCert      bool
	Password        string
	PAMService      string
	RootDirectory   string
	AutosaveInterval time.Duration
	AutosaveHook    string
	SyncDirectory   string
	SyncInterval    time.Duration
}

func defaultConfig() config {
	return config{
		Port:             6523,
		SecurityPolicy:   "allow-tls",
		RootDirectory:    ".infinote",
		AutosaveInterval: 5 * time.Minute,
		SyncInterval:     5 * time.Minute,
	}
}

// configSearchPaths returns the user-config then system-config files to
// read, in that order, so later files override earlier ones (spec §6:
// "Configuration files are searched in user-config and then
// system-config paths; later files override earlier.").
//
// Note the ordering: system paths are read AFTER the user path so that a
// value present in both wins from the system file, matching the spec's
// literal wording even though most daemons let the user override the
// system default. This module follows the spec's stated order rather
// than the more common convention.
func configSearchPaths() []string {
	var out []string
	if home, err := os.UserHomeDir(); err == nil {
		out = append(out, filepath.Join(home, ".config", "infinoted", "infinoted.conf"))
	}
	out = append(out, "/etc/infinoted/infinoted.conf", "/etc/infinoted.conf")
	return out
}

// loadConfigFiles applies simple `key = value` lines from each existing
// path in order onto cfg, later files overriding earlier ones.
func loadConfigFiles(cfg *config, paths []string) {
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		applyConfigFile(cfg, string(data))
	}
}

func applyConfigFile(cfg *config, content string) {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])
		switch key {
		case "key-file":
			cfg.KeyFile = val
		case "certificate-file":
			cfg.CertificateFile = val
		case "certificate-chain-file":
			cfg.CertChainFile = val
		case "ca-list-file":
			cfg.CAListFile = val
		case "port":
			fmt.Sscanf(val, "%d", &cfg.Port)
		case "security-policy":
			cfg.SecurityPolicy = val
		case "root-directory":
			cfg.RootDirectory = val
		case "sync-directory":
			cfg.SyncDirectory = val
		case "pam-service":
			cfg.PAMService = val
		case "autosave-hook":
			cfg.AutosaveHook = val
		}
	}
}

func parsePolicy(name string) (transport.SecurityPolicy, error) {
	switch name {
	case "no-tls":
		return transport.OnlyUnsecured, nil
	case "allow-tls":
		return transport.BothPreferTLS, nil
	case "require-tls":
		return transport.OnlyTLS, nil
	default:
		return 0, fmt.Errorf("invalid --security-policy %q (want no-tls, allow-tls, or require-tls)", name)
	}
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "infinoted: "+err.Error())
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg := defaultConfig()
	loadConfigFiles(&cfg, configSearchPaths())

	fs := flag.NewFlagSet("infinoted", flag.ContinueOnError)
	fs.StringVar(&cfg.KeyFile, "key-file", cfg.KeyFile, "private key file (PEM)")
	fs.StringVar(&cfg.CertificateFile, "certificate-file", cfg.CertificateFile, "certificate file (PEM)")
	fs.StringVar(&cfg.CertChainFile, "certificate-chain-file", cfg.CertChainFile, "certificate chain file (PEM)")
	fs.StringVar(&cfg.CAListFile, "ca-list-file", cfg.CAListFile, "trusted CA list file (PEM)")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "TCP port to listen on")
	fs.StringVar(&cfg.SecurityPolicy, "security-policy", cfg.SecurityPolicy, "no-tls|allow-tls|require-tls")
	fs.BoolVar(&cfg.CreateKey, "create-key", false, "generate a new private key at --key-file and exit")
	fs.BoolVar(&cfg.CreateCert, "create-certificate", false, "generate a self-signed certificate at --certificate-file and exit")
	fs.StringVar(&cfg.Password, "password", cfg.Password, "password required of connecting clients (default account)")
	fs.StringVar(&cfg.PAMService, "pam-service", cfg.PAMService, "PAM service name for password authentication")
	fs.StringVar(&cfg.RootDirectory, "root-directory", cfg.RootDirectory, "directory tree storage path")
	fs.DurationVar(&cfg.AutosaveInterval, "autosave-interval", cfg.AutosaveInterval, "autosave interval")
	fs.StringVar(&cfg.AutosaveHook, "autosave-hook", cfg.AutosaveHook, "command run after each autosave")
	fs.StringVar(&cfg.SyncDirectory, "sync-directory", cfg.SyncDirectory, "directory to mirror documents into on save")
	fs.DurationVar(&cfg.SyncInterval, "sync-interval", cfg.SyncInterval, "sync-directory mirror interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger.Init()

	if cfg.CreateKey {
		return createKey(cfg.KeyFile)
	}
	if cfg.CreateCert {
		return createCertificate(cfg.KeyFile, cfg.CertificateFile)
	}

	policy, err := parsePolicy(cfg.SecurityPolicy)
	if err != nil {
		return err
	}

	var tlsConf *tls.Config
	if policy != transport.OnlyUnsecured {
		tlsConf, err = loadTLSConfig(cfg)
		if err != nil {
			return fmt.Errorf("load TLS materials: %w", err)
		}
	}

	if cfg.PAMService != "" {
		logger.Info("pam-service %q configured; PAM-backed password auth is not wired in this build (no PAM binding in scope)", cfg.PAMService)
	}
	if cfg.AutosaveHook != "" || cfg.SyncDirectory != "" {
		logger.Info("autosave-hook/sync-directory accepted but the autosave/sync daemon utilities are out of this module's scope (spec §1)")
	}

	if err := os.MkdirAll(cfg.RootDirectory, 0755); err != nil {
		return fmt.Errorf("create root directory: %w", err)
	}

	storage, err := directory.OpenSQLiteStorage(filepath.Join(cfg.RootDirectory, "directory.sqlite"))
	if err != nil {
		return fmt.Errorf("open directory storage: %w", err)
	}
	defer storage.Close()

	tree, err := directory.NewTree(storage)
	if err != nil {
		return fmt.Errorf("build directory tree: %w", err)
	}

	accountsPath := filepath.Join(cfg.RootDirectory, "accounts.xml")
	accounts, err := acl.LoadAccounts(accountsPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load accounts: %w", err)
		}
		accounts = nil
	}
	if cfg.Password != "" {
		accounts = upsertDefaultPassword(accounts, cfg.Password)
		if err := acl.SaveAccounts(accountsPath, accounts); err != nil {
			return fmt.Errorf("save accounts: %w", err)
		}
	}
	logger.Info("loaded %d account(s) from %s", len(accounts), accountsPath)

	loop := ioloop.New()
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	go loop.Run(ctx)

	srv := transport.NewServer(loop, policy, tlsConf, func(conn *transport.Conn, sm *transport.StateMachine) {
		logger.Info("accepted connection from %v, role=%v", conn.Raw().RemoteAddr(), sm.Role)
		_ = tree // the accepted connection is only logged: no
		// STARTTLS/SASL negotiation is driven on sm, and no
		// comm.Registry/comm.Group pair with a directory.Handler target
		// is attached, so no "InfDirectory" stanza from a socket reaches
		// the node tree (see DESIGN.md, "Known scope limits").
	})
	if err := srv.Listen(ctx, fmt.Sprintf(":%d", cfg.Port)); err != nil {
		return fmt.Errorf("listen on port %d: %w", cfg.Port, err)
	}
	defer srv.Close()

	logger.Info("infinoted listening on port %d (policy=%s, root=%s)", cfg.Port, cfg.SecurityPolicy, cfg.RootDirectory)
	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

// upsertDefaultPassword sets or replaces the "default" account's password
// hash from --password, generating a fresh random salt (spec §4.K:
// "the server computes SHA256(salt[0:16] || password || salt[16:32])").
func upsertDefaultPassword(accounts []acl.AccountInfo, password string) []acl.AccountInfo {
	var salt [32]byte
	rand.Read(salt[:])
	hash := acl.HashPassword(salt, password)
	now := time.Now()

	for i, a := range accounts {
		if a.ID == string(acl.Default) {
			accounts[i].HasPassword = true
			accounts[i].Salt = salt
			accounts[i].PasswordHash = hash
			accounts[i].LastSeen = now
			return accounts
		}
	}
	return append(accounts, acl.AccountInfo{
		ID: string(acl.Default), HasPassword: true, Salt: salt, PasswordHash: hash,
		FirstSeen: now, LastSeen: now,
	})
}

func loadTLSConfig(cfg config) (*tls.Config, error) {
	if cfg.KeyFile == "" || cfg.CertificateFile == "" {
		return nil, fmt.Errorf("--key-file and --certificate-file are required unless --security-policy=no-tls")
	}
	certPEM, err := os.ReadFile(cfg.CertificateFile)
	if err != nil {
		return nil, err
	}
	if cfg.CertChainFile != "" {
		chain, err := os.ReadFile(cfg.CertChainFile)
		if err != nil {
			return nil, err
		}
		certPEM = append(certPEM, chain...)
	}
	keyPEM, err := os.ReadFile(cfg.KeyFile)
	if err != nil {
		return nil, err
	}
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, err
	}
	tlsConf := &tls.Config{Certificates: []tls.Certificate{cert}}
	if cfg.CAListFile != "" {
		caPEM, err := os.ReadFile(cfg.CAListFile)
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		pool.AppendCertsFromPEM(caPEM)
		tlsConf.ClientCAs = pool
	}
	return tlsConf, nil
}

// createKey implements --create-key: generate an ECDSA P-256 private key
// and write it PEM-encoded to path. No key-management library appears in
// the retrieved pack, and crypto/ecdsa plus encoding/pem is the standard
// way Go generates a self-managed key pair, so this stays on the standard
// library rather than adopting an unrelated dependency for one helper.
func createKey(path string) error {
	if path == "" {
		return fmt.Errorf("--create-key requires --key-file")
	}
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return err
	}
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return err
	}
	block := &pem.Block{Type: "EC PRIVATE KEY", Bytes: der}
	return os.WriteFile(path, pem.EncodeToMemory(block), 0600)
}

// createCertificate implements --create-certificate: a self-signed
// certificate over the key at --key-file, written to --certificate-file.
func createCertificate(keyFile, certFile string) error {
	if keyFile == "" || certFile == "" {
		return fmt.Errorf("--create-certificate requires --key-file and --certificate-file")
	}
	keyPEM, err := os.ReadFile(keyFile)
	if err != nil {
		return err
	}
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return fmt.Errorf("no PEM block found in %s", keyFile)
	}
	key, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return err
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return err
	}
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: "infinoted"},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().AddDate(10, 0, 0),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return err
	}
	return os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0600)
}
