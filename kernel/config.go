package kernel

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads Options from a YAML file. Keys missing from the file keep
// their DefaultOptions values; unknown keys are an error.
//
//	ram_pages: 2048
//	kernel_pages: 16
//	user_page_limit: 256
//	fill_on_free: true
func LoadConfig(path string) (Options, error) {
	f, err := os.Open(path)
	if err != nil {
		return Options{}, fmt.Errorf("kernel: open config: %w", err)
	}
	defer f.Close()

	opts, err := DecodeConfig(f)
	if err != nil {
		return Options{}, fmt.Errorf("kernel: %s: %w", path, err)
	}
	return opts, nil
}

// DecodeConfig reads Options as YAML from r, starting from DefaultOptions.
// An empty document yields the defaults.
func DecodeConfig(r io.Reader) (Options, error) {
	opts := DefaultOptions()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		return Options{}, fmt.Errorf("decode config: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}
