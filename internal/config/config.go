// Package config holds the named, validated configuration structs for
// model families: the LSH config consumed by internal/lsh, and a
// representative clustering config for the broader model family. Loading
// is done by cmd/node and cmd/coordinator via spf13/viper (file/env) with
// spf13/cobra flags layered on top, matching the erigon/go-ethereum
// convention of cobra-driven CLIs backed by viper-driven config.
package config

import "github.com/dreamware/jubatus/internal/jerrors"

// LSH holds the Euclid-LSH recommender's tunables, defaults and
// constraints reproduced exactly from euclid_lsh.cpp's constructor
// validation order.
type LSH struct {
	HashNum           uint64  `mapstructure:"hash_num"`
	TableNum          uint64  `mapstructure:"table_num"`
	BinWidth          float64 `mapstructure:"bin_width"`
	ProbeNum          uint32  `mapstructure:"probe_num"`
	Seed              uint32  `mapstructure:"seed"`
	RetainProjection  bool    `mapstructure:"retain_projection"`
}

// DefaultLSH returns euclid_lsh.cpp's constructor defaults.
func DefaultLSH() LSH {
	return LSH{
		HashNum:          64,
		TableNum:         4,
		BinWidth:         100.0,
		ProbeNum:         64,
		Seed:             1091,
		RetainProjection: false,
	}
}

// Validate checks every constraint in the same order the original
// euclid_lsh constructor checks them, returning an
// invalid_parameter error naming the offending option.
func (c LSH) Validate() error {
	if c.HashNum < 1 {
		return jerrors.New(jerrors.InvalidParameter, "config.LSH", "hash_num must be >= 1, got %d", c.HashNum)
	}
	if c.TableNum < 1 {
		return jerrors.New(jerrors.InvalidParameter, "config.LSH", "table_num must be >= 1, got %d", c.TableNum)
	}
	if !(c.BinWidth > 0) {
		return jerrors.New(jerrors.InvalidParameter, "config.LSH", "bin_width must be > 0, got %f", c.BinWidth)
	}
	// probe_num and seed are unsigned so "< 0" can't occur in Go; the
	// constraint is preserved as documentation of intent.
	return nil
}

// CompressorMethod names the supported clustering compressor strategies.
type CompressorMethod string

const (
	CompressorSimple     CompressorMethod = "simple"
	CompressorCompressive CompressorMethod = "compressive"
)

// Clustering holds a representative clustering config. Unrecognized
// fields loaded from file/env are ignored by viper;
// missing fields take these defaults.
type Clustering struct {
	CompressorMethod   CompressorMethod `mapstructure:"compressor_method"`
	K                  uint32           `mapstructure:"k"`
	ForgettingFactor   float64          `mapstructure:"forgetting_factor"`
	ForgettingThreshold float64         `mapstructure:"forgetting_threshold"`
	Seed               uint32           `mapstructure:"seed"`
}

// DefaultClustering returns sane defaults for the clustering config.
func DefaultClustering() Clustering {
	return Clustering{
		K:                   16,
		CompressorMethod:    CompressorSimple,
		ForgettingFactor:    1.0,
		ForgettingThreshold: 0.1,
		Seed:                0,
	}
}

// Validate checks the clustering config's constraints.
func (c Clustering) Validate() error {
	if c.K < 1 {
		return jerrors.New(jerrors.InvalidParameter, "config.Clustering", "k must be >= 1, got %d", c.K)
	}
	switch c.CompressorMethod {
	case CompressorSimple, CompressorCompressive:
	default:
		return jerrors.New(jerrors.InvalidParameter, "config.Clustering", "unknown compressor_method %q", c.CompressorMethod)
	}
	if !(c.ForgettingFactor > 0) {
		return jerrors.New(jerrors.InvalidParameter, "config.Clustering", "forgetting_factor must be > 0, got %f", c.ForgettingFactor)
	}
	if c.ForgettingThreshold < 0 || c.ForgettingThreshold > 1 {
		return jerrors.New(jerrors.InvalidParameter, "config.Clustering", "forgetting_threshold must be in [0,1], got %f", c.ForgettingThreshold)
	}
	return nil
}
