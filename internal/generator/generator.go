package generator

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/nrednav/cuid2"
	"github.com/oklog/ulid/v2"
	"github.com/segmentio/ksuid"
)

const (
	DefaultNanoIDSize     = 21
	DefaultNanoIDAlphabet = "_-0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	DefaultCUID2Length    = 24
)

// Generator produces opaque string identifiers, used for connection ids.
type Generator interface {
	Generate() (string, error)
	Name() string
}

// Options selects and sizes a string generator.
type Options struct {
	Kind        string // uuid, ulid, ksuid, nanoid, cuid2
	NanoIDSize  int
	Cuid2Length int
}

// New returns the generator named by opts.Kind. An empty kind means uuid.
func New(opts Options) (Generator, error) {
	switch opts.Kind {
	case "", "uuid":
		return uuidGenerator{}, nil
	case "ulid":
		return ulidGenerator{}, nil
	case "ksuid":
		return ksuidGenerator{}, nil
	case "nanoid":
		size := opts.NanoIDSize
		if size == 0 {
			size = DefaultNanoIDSize
		}
		if size < 1 || size > 256 {
			return nil, fmt.Errorf("nanoid size must be between 1 and 256, got %d", size)
		}
		return nanoidGenerator{size: size, alphabet: DefaultNanoIDAlphabet}, nil
	case "cuid2":
		length := opts.Cuid2Length
		if length == 0 {
			length = DefaultCUID2Length
		}
		if length < 2 || length > 32 {
			return nil, fmt.Errorf("cuid2 length must be between 2 and 32, got %d", length)
		}
		gen, err := cuid2.Init(cuid2.WithLength(length))
		if err != nil {
			return nil, fmt.Errorf("failed to init CUID2 generator: %w", err)
		}
		return cuid2Generator{generate: gen}, nil
	default:
		return nil, fmt.Errorf("unknown id generator: %s", opts.Kind)
	}
}

type uuidGenerator struct{}

func (uuidGenerator) Name() string { return "uuid" }

func (uuidGenerator) Generate() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate UUID: %w", err)
	}
	return id.String(), nil
}

type ulidGenerator struct{}

func (ulidGenerator) Name() string { return "ulid" }

func (ulidGenerator) Generate() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("failed to generate ULID: %w", err)
	}
	return id.String(), nil
}

type ksuidGenerator struct{}

func (ksuidGenerator) Name() string { return "ksuid" }

func (ksuidGenerator) Generate() (string, error) {
	id, err := ksuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate KSUID: %w", err)
	}
	return id.String(), nil
}

type nanoidGenerator struct {
	size     int
	alphabet string
}

func (nanoidGenerator) Name() string { return "nanoid" }

func (g nanoidGenerator) Generate() (string, error) {
	id, err := gonanoid.Generate(g.alphabet, g.size)
	if err != nil {
		return "", fmt.Errorf("failed to generate NanoID: %w", err)
	}
	return id, nil
}

type cuid2Generator struct {
	generate func() string
}

func (cuid2Generator) Name() string { return "cuid2" }

func (g cuid2Generator) Generate() (string, error) {
	return g.generate(), nil
}
