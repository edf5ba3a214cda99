package execute

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"fortio.org/safecast"
	"github.com/viant/afs"
	"gopkg.in/yaml.v3"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const (
	environmentFile = "environment.yaml"
	requestFile     = "request.yaml"
	keypairsDir     = "keypairs"
)

// Environment represents the state the program starts with
type Environment struct {
	Env   map[string]string `yaml:"env"`
	Files map[string]string `yaml:"files"` // relative path to content, written to the working directory
}

// Request represents the invocation of the program
type Request struct {
	Args  []string `yaml:"args"`
	Stdin string   `yaml:"stdin"`
}

// Keypair represents signing material
type Keypair struct {
	Name       string
	PrivateKey ed25519.PrivateKey
}

// Input represents everything one execution consumes
type Input struct {
	Dir         string
	Environment *Environment
	Request     *Request
	Keypairs    []*Keypair
}

// LoadInput reads an input folder, every part is optional
func LoadInput(ctx context.Context, dir string) (*Input, error) {
	fs := afs.New()
	input := &Input{Dir: dir, Environment: &Environment{}, Request: &Request{}}
	if err := loadYAML(ctx, fs, filepath.Join(dir, environmentFile), input.Environment); err != nil {
		return nil, err
	}
	if err := loadYAML(ctx, fs, filepath.Join(dir, requestFile), input.Request); err != nil {
		return nil, err
	}
	for name := range input.Environment.Files {
		if !isLocal(name) {
			return nil, fmt.Errorf("invalid file %q in %v: path has to be relative", name, environmentFile)
		}
	}
	keypairs, err := loadKeypairs(ctx, fs, filepath.Join(dir, keypairsDir))
	if err != nil {
		return nil, err
	}
	input.Keypairs = keypairs
	return input, nil
}

func loadYAML(ctx context.Context, fs afs.Service, location string, target interface{}) error {
	exists, err := fs.Exists(ctx, location)
	if err != nil || !exists {
		return err
	}
	data, err := fs.DownloadWithURL(ctx, location)
	if err != nil {
		return fmt.Errorf("failed to read %v: %w", location, err)
	}
	if err = yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to decode %v: %w", location, err)
	}
	return nil
}

func loadKeypairs(ctx context.Context, fs afs.Service, dir string) ([]*Keypair, error) {
	exists, err := fs.Exists(ctx, dir)
	if err != nil || !exists {
		return nil, err
	}
	objects, err := fs.List(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %v: %w", dir, err)
	}
	var names []string
	for _, object := range objects {
		if !object.IsDir() && strings.HasSuffix(object.Name(), ".json") {
			names = append(names, object.Name())
		}
	}
	sort.Strings(names)
	var result []*Keypair
	for _, name := range names {
		location := filepath.Join(dir, name)
		data, err := fs.DownloadWithURL(ctx, location)
		if err != nil {
			return nil, fmt.Errorf("failed to read %v: %w", location, err)
		}
		key, err := decodeKeypair(data)
		if err != nil {
			return nil, fmt.Errorf("invalid keypair %v: %w", location, err)
		}
		result = append(result, &Keypair{Name: strings.TrimSuffix(name, ".json"), PrivateKey: key})
	}
	return result, nil
}

// decodeKeypair reads a JSON array of 64 byte values, the ed25519 seed followed by the public key
func decodeKeypair(data []byte) (ed25519.PrivateKey, error) {
	var values []int
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, err
	}
	if len(values) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("expected %d bytes, but had %d", ed25519.PrivateKeySize, len(values))
	}
	key := make([]byte, len(values))
	for i, value := range values {
		b, err := safecast.Conv[byte](value)
		if err != nil {
			return nil, fmt.Errorf("byte %d: %w", i, err)
		}
		key[i] = b
	}
	private := ed25519.NewKeyFromSeed(key[:ed25519.SeedSize])
	if !private.Public().(ed25519.PublicKey).Equal(ed25519.PublicKey(key[ed25519.SeedSize:])) {
		return nil, fmt.Errorf("public key does not match seed")
	}
	return private, nil
}

// SignerEnv signs stdin with every keypair and exports the public keys and signatures
func (i *Input) SignerEnv() []string {
	var env []string
	for index, keypair := range i.Keypairs {
		prefix := "LINESCOPE_SIGNER_" + strconv.Itoa(index)
		public := keypair.PrivateKey.Public().(ed25519.PublicKey)
		signature := ed25519.Sign(keypair.PrivateKey, []byte(i.Request.Stdin))
		env = append(env,
			prefix+"_PUBKEY="+base64.StdEncoding.EncodeToString(public),
			prefix+"_SIGNATURE="+base64.StdEncoding.EncodeToString(signature),
		)
	}
	return env
}

// Env returns environment variables in a stable order
func (i *Input) Env() []string {
	keys := make([]string, 0, len(i.Environment.Env))
	for key := range i.Environment.Env {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	env := make([]string, 0, len(keys))
	for _, key := range keys {
		env = append(env, key+"="+i.Environment.Env[key])
	}
	return append(env, i.SignerEnv()...)
}

func isLocal(name string) bool {
	if name == "" || path.IsAbs(name) || filepath.IsAbs(name) {
		return false
	}
	cleaned := path.Clean(filepath.ToSlash(name))
	return cleaned != ".." && !strings.HasPrefix(cleaned, "../")
}
