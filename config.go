// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package mumblepad

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// EngineConfig is a JSON-loadable description of how to construct an Engine,
// for programs that want their engine wiring driven by a config file rather
// than assembled in code.
type EngineConfig struct {
	Engine  string `json:"engine"`  // "cpu-single" or "cpu-multi"
	Block   int    `json:"block"`  // 128, 256, 512, 1024, 2048 or 4096
	Padding bool   `json:"padding"`
	Threads int    `json:"threads"` // worker count, only meaningful for cpu-multi
	KeyFile string `json:"keyfile"`
}

// LoadConfig reads and decodes a JSON config file at path.
func LoadConfig(path string) (*EngineConfig, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "mumblepad: open config")
	}
	defer file.Close()

	var cfg EngineConfig
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, errors.Wrap(err, "mumblepad: decode config")
	}
	return &cfg, nil
}

// engineType maps the config's string engine name to an EngineType,
// defaulting to EngineTypeCPUSingle for an empty value but rejecting any
// unrecognized one.
func (c *EngineConfig) engineType() (EngineType, error) {
	switch c.Engine {
	case "", "cpu-single":
		return EngineTypeCPUSingle, nil
	case "cpu-multi":
		return EngineTypeCPUMulti, nil
	default:
		return 0, errors.Errorf("mumblepad: invalid engine %q in config", c.Engine)
	}
}

func (c *EngineConfig) blockType() (BlockType, error) {
	switch c.Block {
	case 128:
		return BlockType128, nil
	case 256:
		return BlockType256, nil
	case 512:
		return BlockType512, nil
	case 1024:
		return BlockType1024, nil
	case 2048:
		return BlockType2048, nil
	case 4096:
		return BlockType4096, nil
	default:
		return 0, errors.Errorf("mumblepad: invalid block size %d in config", c.Block)
	}
}

func (c *EngineConfig) paddingType() PaddingType {
	if c.Padding {
		return PaddingOn
	}
	return PaddingOff
}

// NewEngineFromConfig builds an Engine per cfg and, when cfg.KeyFile is set,
// key-loads it from that file; with no KeyFile the Engine has no key yet.
func NewEngineFromConfig(cfg *EngineConfig) (*Engine, error) {
	bt, err := cfg.blockType()
	if err != nil {
		return nil, err
	}
	et, err := cfg.engineType()
	if err != nil {
		return nil, err
	}
	e, err := NewEngine(et, bt, cfg.paddingType(), cfg.Threads)
	if err != nil {
		return nil, err
	}
	if cfg.KeyFile != "" {
		if err := e.LoadKeyFile(cfg.KeyFile); err != nil {
			return nil, err
		}
	}
	return e, nil
}
