package keystore

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/glyptodon/util"
)

const (
	privateKeyFile = "private.pem"
	lockFileName   = "keygen.lock"
	keyBits        = 2048

	persistRetries    = 5
	persistRetryDelay = 250 * time.Millisecond
)

// legacyKeyFiles are private key filenames from older layouts, removed
// whenever a new key is written
var legacyKeyFiles = []string{"actor.pem", "actor_private.pem"}

// ErrKeysUnavailable gates the actor document and outbound delivery while
// the keypair is missing or unreadable
var ErrKeysUnavailable = errors.New("keys unavailable")

// KeyStore owns the actor's RSA keypair: generation, durable persistence
// and hot reload. The private key lives in a 0600 file in the data
// directory, the public half is recorded in the config store.
type KeyStore struct {
	dataDir string
	conf    *util.ConfigStore
	log     *log.Logger

	mu           sync.Mutex
	privKey      *rsa.PrivateKey
	keyMTime     time.Time
	wasAvailable bool
	observers    []func()
}

func New(dataDir string, conf *util.ConfigStore, logger *log.Logger) *KeyStore {
	return &KeyStore{dataDir: dataDir, conf: conf, log: logger}
}

func (k *KeyStore) keyPath() string {
	return filepath.Join(k.dataDir, privateKeyFile)
}

func (k *KeyStore) lockPath() string {
	return filepath.Join(k.dataDir, lockFileName)
}

func (k *KeyStore) keyFileMissing() bool {
	_, err := os.Stat(k.keyPath())
	return os.IsNotExist(err)
}

// EnsureKeys generates the keypair when the private key file is missing,
// or unconditionally when force is set. Generation is serialized across
// processes sharing the data directory via a pid lock file. A persistence
// failure after retries is returned as a fatal error, callers must not
// serve with inconsistent key state.
func (k *KeyStore) EnsureKeys(force bool) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if !force {
		if err := k.loadLocked(); err == nil {
			if err := k.syncPublicRecordLocked(); err != nil {
				return err
			}
			k.notifyLocked()
			return nil
		} else if !k.keyFileMissing() {
			// A present but unreadable key file is never overwritten silently
			return fmt.Errorf("existing key file is unreadable, regenerate with force: %w", err)
		}
	}

	lock, err := acquireLock(k.lockPath(), lockTimeout)
	if err != nil {
		return fmt.Errorf("keygen lock: %w", err)
	}
	defer lock.Release()

	// Another process may have generated while we waited for the lock
	if !force {
		if err := k.loadLocked(); err == nil {
			if err := k.syncPublicRecordLocked(); err != nil {
				return err
			}
			k.notifyLocked()
			return nil
		}
	}

	k.log.Info("Generating actor keypair", "bits", keyBits)
	priv, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return fmt.Errorf("failed to generate keypair: %w", err)
	}

	if err := k.persistLocked(priv); err != nil {
		return err
	}

	k.privKey = priv
	if info, err := os.Stat(k.keyPath()); err == nil {
		k.keyMTime = info.ModTime()
	}
	k.log.Info("Actor keypair ready", "path", k.keyPath())
	k.notifyLocked()
	return nil
}

// persistLocked writes both key halves durably, retrying with exponential
// backoff before giving up
func (k *KeyStore) persistLocked(priv *rsa.PrivateKey) error {
	privPEM, err := EncodePrivateKeyPEM(priv)
	if err != nil {
		return err
	}
	pubPEM, err := EncodePublicKeyPEM(&priv.PublicKey)
	if err != nil {
		return err
	}

	for _, name := range legacyKeyFiles {
		path := filepath.Join(k.dataDir, name)
		if err := os.Remove(path); err == nil {
			k.log.Info("Removed legacy key file", "path", path)
		}
	}

	var lastErr error
	delay := persistRetryDelay
	for attempt := 1; attempt <= persistRetries; attempt++ {
		lastErr = k.writeKeyMaterial(privPEM, pubPEM)
		if lastErr == nil {
			return nil
		}
		k.log.Error("Failed to persist key material", "attempt", attempt, "err", lastErr)
		time.Sleep(delay)
		delay *= 2
	}
	return fmt.Errorf("failed to persist keys after %d attempts: %w", persistRetries, lastErr)
}

// writeKeyMaterial writes the private key file and the public key record,
// skipping writes whose content is already on disk
func (k *KeyStore) writeKeyMaterial(privPEM, pubPEM string) error {
	existing, err := os.ReadFile(k.keyPath())
	if err != nil || !bytes.Equal(existing, []byte(privPEM)) {
		if err := util.WriteFileAtomic(k.keyPath(), []byte(privPEM), 0600); err != nil {
			return err
		}
	}
	return k.conf.SetPublicKeyPem(pubPEM)
}

// syncPublicRecordLocked rewrites the config record when it drifted from
// the private key on disk
func (k *KeyStore) syncPublicRecordLocked() error {
	pubPEM, err := EncodePublicKeyPEM(&k.privKey.PublicKey)
	if err != nil {
		return err
	}
	return k.conf.SetPublicKeyPem(pubPEM)
}

// loadLocked refreshes the in-memory key from disk when nothing is loaded
// yet or the file changed since the last read
func (k *KeyStore) loadLocked() error {
	info, err := os.Stat(k.keyPath())
	if err != nil {
		k.wasAvailable = false
		return fmt.Errorf("%w: %v", ErrKeysUnavailable, err)
	}

	if k.privKey != nil && info.ModTime().Equal(k.keyMTime) {
		return nil
	}

	data, err := os.ReadFile(k.keyPath())
	if err != nil {
		k.wasAvailable = false
		return fmt.Errorf("%w: %v", ErrKeysUnavailable, err)
	}

	priv, err := ParsePrivateKeyPEM(string(data))
	if err != nil {
		k.wasAvailable = false
		return fmt.Errorf("%w: %v", ErrKeysUnavailable, err)
	}

	k.privKey = priv
	k.keyMTime = info.ModTime()
	return nil
}

// notifyLocked fires observers on the absent-to-present transition.
// Callbacks run synchronously and must not call back into the store.
func (k *KeyStore) notifyLocked() {
	if k.wasAvailable {
		return
	}
	k.wasAvailable = true
	for _, fn := range k.observers {
		fn()
	}
}

// OnKeysRefreshed registers a callback invoked once per transition from
// "keys absent" to "keys present"
func (k *KeyStore) OnKeysRefreshed(fn func()) {
	k.mu.Lock()
	k.observers = append(k.observers, fn)
	k.mu.Unlock()
}

// PrivateKey returns the current private key, refreshing from disk first
// when the in-memory copy is stale
func (k *KeyStore) PrivateKey() (*rsa.PrivateKey, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.loadLocked(); err != nil {
		return nil, err
	}
	k.notifyLocked()
	return k.privKey, nil
}

// PublicKey returns the public half of the current keypair
func (k *KeyStore) PublicKey() (*rsa.PublicKey, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.loadLocked(); err != nil {
		return nil, err
	}
	k.notifyLocked()
	return &k.privKey.PublicKey, nil
}

// PublicKeyPEM returns the persisted public key record, deriving it from
// the private key when the record is missing
func (k *KeyStore) PublicKeyPEM() (string, error) {
	if pem := k.conf.PublicKeyPem(); pem != "" {
		return pem, nil
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.loadLocked(); err != nil {
		return "", err
	}
	k.notifyLocked()
	return EncodePublicKeyPEM(&k.privKey.PublicKey)
}

// Available reports whether both key halves are usable
func (k *KeyStore) Available() bool {
	k.mu.Lock()
	if err := k.loadLocked(); err != nil {
		k.mu.Unlock()
		return false
	}
	k.notifyLocked()
	k.mu.Unlock()
	return k.conf.PublicKeyPem() != ""
}

// Fingerprint returns an ssh-style digest of the public key for display
func (k *KeyStore) Fingerprint() (string, error) {
	pub, err := k.PublicKey()
	if err != nil {
		return "", err
	}
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("failed to marshal public key: %w", err)
	}
	sum := sha256.Sum256(der)
	return "SHA256:" + base64.RawStdEncoding.EncodeToString(sum[:]), nil
}
