package objectkey

import (
	"crypto/sha256"
	"fmt"
	"path"
	"strings"
)

// Generator defines the interface for object key generation strategies.
// Keys must be deterministic for a given folder and public id so that a
// re-upload overwrites the previous object.
type Generator interface {
	GenerateKey(metadata *KeyMetadata) string
}

// KeyMetadata contains information that influences key generation
type KeyMetadata struct {
	Folder   string // namespace, e.g. "digistore1/ebooks/all-about-dogs"
	PublicID string // usually the slug
	FileName string // original filename, used for the extension
}

// Strategy names accepted by New.
const (
	StrategyFolder    = "folder"
	StrategyExtension = "extension"
	StrategySharded   = "sharded"
)

// New returns the generator registered under name.
func New(name string) (Generator, error) {
	switch name {
	case "", StrategyFolder:
		return NewFolderGenerator(), nil
	case StrategyExtension:
		return NewExtensionGenerator(), nil
	case StrategySharded:
		return NewShardedGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown object key strategy: %s", name)
	}
}

// FolderGenerator produces folder/public-id, the layout Cloudinary uses for
// raw assets.
type FolderGenerator struct{}

func NewFolderGenerator() *FolderGenerator {
	return &FolderGenerator{}
}

func (g *FolderGenerator) GenerateKey(metadata *KeyMetadata) string {
	if metadata == nil {
		return ""
	}
	return join(metadata.Folder, sanitizeFilename(metadata.PublicID))
}

// ExtensionGenerator produces folder/public-id.ext, e.g.
// ebooks/cats/caring-for-kittens-cat.pdf
type ExtensionGenerator struct{}

func NewExtensionGenerator() *ExtensionGenerator {
	return &ExtensionGenerator{}
}

func (g *ExtensionGenerator) GenerateKey(metadata *KeyMetadata) string {
	if metadata == nil {
		return ""
	}
	name := sanitizeFilename(metadata.PublicID)
	if ext := strings.ToLower(path.Ext(metadata.FileName)); ext != "" && !strings.HasSuffix(name, ext) {
		name += ext
	}
	return join(metadata.Folder, name)
}

// ShardedGenerator spreads objects across hash-prefixed directories:
// folder/ab/public-id.ext. The shard comes from the public id so the key is
// stable across runs.
type ShardedGenerator struct {
	// ShardLength controls how many hex characters to use (default: 2)
	ShardLength int
	base        *ExtensionGenerator
}

func NewShardedGenerator() *ShardedGenerator {
	return &ShardedGenerator{ShardLength: 2, base: NewExtensionGenerator()}
}

func (g *ShardedGenerator) GenerateKey(metadata *KeyMetadata) string {
	if metadata == nil {
		return ""
	}
	hash := fmt.Sprintf("%x", sha256.Sum256([]byte(metadata.PublicID)))
	shard := g.ShardLength
	if shard <= 0 || shard > len(hash) {
		shard = 2
	}
	base := g.base
	if base == nil {
		base = NewExtensionGenerator()
	}
	name := path.Base(base.GenerateKey(&KeyMetadata{PublicID: metadata.PublicID, FileName: metadata.FileName}))
	return join(metadata.Folder, hash[:shard], name)
}

// CustomFuncGenerator allows users to provide their own key generation function
type CustomFuncGenerator struct {
	GenerateFunc func(metadata *KeyMetadata) string
}

func NewCustomFuncGenerator(fn func(metadata *KeyMetadata) string) *CustomFuncGenerator {
	return &CustomFuncGenerator{GenerateFunc: fn}
}

func (g *CustomFuncGenerator) GenerateKey(metadata *KeyMetadata) string {
	return g.GenerateFunc(metadata)
}

func join(parts ...string) string {
	var cleaned []string
	for _, p := range parts {
		p = strings.Trim(sanitizePathComponent(p), "/")
		if p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return strings.Join(cleaned, "/")
}

func sanitizeFilename(filename string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
	)
	return replacer.Replace(filename)
}

// sanitizePathComponent keeps "/" so folders can be nested.
func sanitizePathComponent(component string) string {
	replacer := strings.NewReplacer(
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
		"..", "_",
	)
	return replacer.Replace(component)
}
