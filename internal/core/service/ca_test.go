package service

import (
	"context"
	"crypto/ed25519"
	"errors"
	"testing"
	"time"

	"github.com/transformerlab/nebula-tower/internal/core/domain"
)

func TestAuthorityService_Create(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()

	resp, err := ts.authority.Create(ctx, &CreateCARequest{Name: "towerroot"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if resp.Name != "towerroot" {
		t.Errorf("Name = %q, want %q", resp.Name, "towerroot")
	}
	if resp.Fingerprint == "" {
		t.Error("Fingerprint is empty")
	}

	cert, err := domain.UnmarshalCertificateFromPEM([]byte(resp.CertificatePEM))
	if err != nil {
		t.Fatalf("UnmarshalCertificateFromPEM() error = %v", err)
	}
	if !cert.Details.IsCA {
		t.Error("certificate is not a CA certificate")
	}
	if !cert.VerifySelf() {
		t.Error("CA certificate does not verify against its own key")
	}
	if cert.Fingerprint() != resp.Fingerprint {
		t.Errorf("Fingerprint = %q, want %q", resp.Fingerprint, cert.Fingerprint())
	}

	// Default window is one year.
	window := resp.NotAfter.Sub(resp.NotBefore)
	if window != 365*24*time.Hour {
		t.Errorf("validity window = %v, want %v", window, 365*24*time.Hour)
	}
}

func TestAuthorityService_Create_AlreadyExists(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()
	ts.withCA(t)

	_, err := ts.authority.Create(ctx, &CreateCARequest{Name: "another"})
	if !errors.Is(err, domain.ErrCAExists) {
		t.Errorf("Create() error = %v, want ErrCAExists", err)
	}
}

func TestAuthorityService_Create_MissingName(t *testing.T) {
	ts := newTestServices(t)

	_, err := ts.authority.Create(context.Background(), &CreateCARequest{Name: "   "})
	if !errors.Is(err, domain.ErrMissingArgument) {
		t.Errorf("Create() error = %v, want ErrMissingArgument", err)
	}
}

func TestAuthorityService_Info(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()

	info, err := ts.authority.Info(ctx)
	if err != nil {
		t.Fatalf("Info() error = %v", err)
	}
	if info.Exists {
		t.Error("Exists = true before CA creation")
	}

	created := ts.withCA(t)

	info, err = ts.authority.Info(ctx)
	if err != nil {
		t.Fatalf("Info() error = %v", err)
	}
	if !info.Exists || !info.KeyExists {
		t.Errorf("Exists = %v, KeyExists = %v, want both true", info.Exists, info.KeyExists)
	}
	if info.Fingerprint != created.Fingerprint {
		t.Errorf("Fingerprint = %q, want %q", info.Fingerprint, created.Fingerprint)
	}
	if info.Curve != domain.CurveName {
		t.Errorf("Curve = %q, want %q", info.Curve, domain.CurveName)
	}
	if info.Signature == "" {
		t.Error("Signature is empty")
	}
}

func TestAuthorityService_Sign(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()
	ts.withCA(t)

	pub, _, err := domain.NewKeypair()
	if err != nil {
		t.Fatalf("NewKeypair() error = %v", err)
	}

	cert, err := ts.authority.Sign(ctx, &SignCertificateRequest{
		Name:      "laptop",
		Network:   "fd42:9e1a:27cd:1::1/64",
		Groups:    []string{"org_acme", "dev"},
		PublicKey: pub,
	})
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	info, err := ts.authority.Info(ctx)
	if err != nil {
		t.Fatalf("Info() error = %v", err)
	}
	caCert, err := domain.UnmarshalCertificateFromPEM([]byte(info.CertificatePEM))
	if err != nil {
		t.Fatalf("UnmarshalCertificateFromPEM() error = %v", err)
	}

	if !cert.Verify(caCert.Details.PublicKey) {
		t.Error("certificate does not verify against the CA key")
	}
	if !cert.IssuedBy(caCert) {
		t.Error("certificate does not name the CA as issuer")
	}
	if cert.Details.IsCA {
		t.Error("host certificate marked as CA")
	}
	if err := cert.CheckWindow(caCert); err != nil {
		t.Errorf("CheckWindow() error = %v", err)
	}
	if cert.Expired(time.Now()) {
		t.Error("freshly issued certificate is expired")
	}
}

func TestAuthorityService_Sign_NoCA(t *testing.T) {
	ts := newTestServices(t)
	pub, _, _ := domain.NewKeypair()

	_, err := ts.authority.Sign(context.Background(), &SignCertificateRequest{
		Name:      "laptop",
		Network:   "fd42:9e1a:27cd:1::1/64",
		PublicKey: pub,
	})
	if !errors.Is(err, domain.ErrCAUnavailable) {
		t.Errorf("Sign() error = %v, want ErrCAUnavailable", err)
	}
}

func TestAuthorityService_Sign_WindowExceedsCA(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()
	ts.withCA(t)
	pub, _, _ := domain.NewKeypair()

	_, err := ts.authority.Sign(ctx, &SignCertificateRequest{
		Name:      "laptop",
		Network:   "fd42:9e1a:27cd:1::1/64",
		NotBefore: time.Now(),
		NotAfter:  time.Now().Add(20 * 365 * 24 * time.Hour),
		PublicKey: pub,
	})
	if !errors.Is(err, domain.ErrCertWindow) {
		t.Errorf("Sign() error = %v, want ErrCertWindow", err)
	}
}

func TestAuthorityService_Sign_Validation(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()
	ts.withCA(t)
	pub, _, _ := domain.NewKeypair()

	tests := []struct {
		name    string
		req     *SignCertificateRequest
		wantErr error
	}{
		{
			name:    "missing name",
			req:     &SignCertificateRequest{Network: "fd42:9e1a:27cd:1::1/64", PublicKey: pub},
			wantErr: domain.ErrMissingArgument,
		},
		{
			name:    "missing network",
			req:     &SignCertificateRequest{Name: "laptop", PublicKey: pub},
			wantErr: domain.ErrMissingArgument,
		},
		{
			name:    "short public key",
			req:     &SignCertificateRequest{Name: "laptop", Network: "fd42:9e1a:27cd:1::1/64", PublicKey: pub[:16]},
			wantErr: domain.ErrInvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ts.authority.Sign(ctx, tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Sign() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAuthorityService_Sign_WrongPassphrase(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()
	ts.withCA(t)

	// A service holding the wrong passphrase shares the same store but
	// cannot unseal the key.
	wrong := NewAuthorityService(ts.store, &AuthorityServiceConfig{Passphrase: "not the passphrase"})
	pub, _, _ := domain.NewKeypair()

	_, err := wrong.Sign(ctx, &SignCertificateRequest{
		Name:      "laptop",
		Network:   "fd42:9e1a:27cd:1::1/64",
		PublicKey: pub,
	})
	if !errors.Is(err, domain.ErrCAUnavailable) {
		t.Errorf("Sign() error = %v, want ErrCAUnavailable", err)
	}
}

func TestAuthorityService_Rotate(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()
	created := ts.withCA(t)

	resp, err := ts.authority.Rotate(ctx, &RotateCARequest{Name: "towerroot", Confirm: true})
	if err != nil {
		t.Fatalf("Rotate() error = %v", err)
	}

	if resp.OldFingerprint != created.Fingerprint {
		t.Errorf("OldFingerprint = %q, want %q", resp.OldFingerprint, created.Fingerprint)
	}
	if resp.NewFingerprint == created.Fingerprint {
		t.Error("NewFingerprint did not change")
	}

	// Signing resumes under the new root.
	pub, _, _ := domain.NewKeypair()
	cert, err := ts.authority.Sign(ctx, &SignCertificateRequest{
		Name:      "laptop",
		Network:   "fd42:9e1a:27cd:1::1/64",
		PublicKey: pub,
	})
	if err != nil {
		t.Fatalf("Sign() after rotation error = %v", err)
	}
	newCA, err := domain.UnmarshalCertificateFromPEM([]byte(resp.CertificatePEM))
	if err != nil {
		t.Fatalf("UnmarshalCertificateFromPEM() error = %v", err)
	}
	if !cert.IssuedBy(newCA) {
		t.Error("certificate issued after rotation does not chain to the new root")
	}
}

func TestAuthorityService_Rotate_Unconfirmed(t *testing.T) {
	ts := newTestServices(t)
	ts.withCA(t)

	_, err := ts.authority.Rotate(context.Background(), &RotateCARequest{Name: "towerroot"})
	if !errors.Is(err, domain.ErrCARotateUnconfirmed) {
		t.Errorf("Rotate() error = %v, want ErrCARotateUnconfirmed", err)
	}
}

func TestAuthorityService_Rotate_NoCA(t *testing.T) {
	ts := newTestServices(t)

	_, err := ts.authority.Rotate(context.Background(), &RotateCARequest{Name: "towerroot", Confirm: true})
	if !errors.Is(err, domain.ErrCANotFound) {
		t.Errorf("Rotate() error = %v, want ErrCANotFound", err)
	}
}

func TestAuthorityService_HostValidityCappedByCA(t *testing.T) {
	store := newMockStore()
	authority := NewAuthorityService(store, &AuthorityServiceConfig{
		Passphrase:   testPassphrase,
		CAValidity:   48 * time.Hour,
		HostValidity: 365 * 24 * time.Hour,
	})

	ctx := context.Background()
	if _, err := authority.Create(ctx, &CreateCARequest{Name: "shortroot"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	pub, _, _ := domain.NewKeypair()
	cert, err := authority.Sign(ctx, &SignCertificateRequest{
		Name:      "laptop",
		Network:   "fd42:9e1a:27cd:1::1/64",
		PublicKey: pub,
	})
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	ca, err := store.GetAuthority(ctx)
	if err != nil {
		t.Fatalf("GetAuthority() error = %v", err)
	}
	caCert, err := ca.Certificate()
	if err != nil {
		t.Fatalf("Certificate() error = %v", err)
	}
	if cert.Details.NotAfter.After(caCert.Details.NotAfter) {
		t.Errorf("host NotAfter %v exceeds CA NotAfter %v",
			cert.Details.NotAfter, caCert.Details.NotAfter)
	}
}

func TestAuthorityService_SealedKeyRoundtrip(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()
	ts.withCA(t)

	// The stored record never carries a raw ed25519 private key.
	authority, err := ts.store.GetAuthority(ctx)
	if err != nil {
		t.Fatalf("GetAuthority() error = %v", err)
	}
	if len(authority.SealedKey) == 0 {
		t.Fatal("SealedKey is empty")
	}
	if len(authority.SealedKey) == ed25519.PrivateKeySize {
		t.Error("SealedKey has raw private key length; key does not look sealed")
	}
}
