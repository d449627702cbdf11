// Package config manages the catalogue of puzzle variants.
//
// Variants live as files in a directory, one per variant, in JSON
// (classic.json) or YAML (tiny.yaml, tiny.yml). The file name without its
// extension is the variant ID used when creating a session.
//
//	{
//	  "name": "classic",
//	  "description": "Classic 4x4 board, reach 8192",
//	  "grid_size": 4,
//	  "start_tiles": 2,
//	  "four_probability": 0.1,
//	  "target_tile": 8192
//	}
//
// Zero fields take the classic defaults, except four_probability where zero
// means only 2s spawn. Loaded variants are cached until RefreshCache.
//
// Usage:
//
//	manager, err := config.NewManager("configs")
//	variant, err := manager.LoadConfig("tiny")
//	fallback := manager.GetDefault()
//
// The default is classic when that file exists, otherwise the first valid
// file, otherwise the built-in classic rules.
package config
