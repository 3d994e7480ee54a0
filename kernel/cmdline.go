package kernel

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownOption indicates a command-line option the kernel does not know.
var ErrUnknownOption = errors.New("kernel: unknown option")

// ParseCommandLine applies the leading options of a kernel command line to
// opts and returns the remaining arguments, which name the actions to run.
// Options start with '-' and end at the first argument that does not.
//
//	-ul=COUNT   limit the user pool to COUNT pages
//	-mem=PAGES  boot with PAGES pages of RAM
//	-kernel=PAGES
//	            size of the kernel image in pages
//	-no-fill    do not overwrite freed memory with 0xcc
func ParseCommandLine(opts *Options, args []string) ([]string, error) {
	for len(args) > 0 && strings.HasPrefix(args[0], "-") {
		name, value, hasValue := strings.Cut(args[0], "=")
		args = args[1:]

		switch name {
		case "-ul":
			n, err := pageCount(name, value, hasValue)
			if err != nil {
				return nil, err
			}
			opts.UserPageLimit = n
		case "-mem":
			n, err := pageCount(name, value, hasValue)
			if err != nil {
				return nil, err
			}
			opts.RAMPages = n
		case "-kernel":
			n, err := pageCount(name, value, hasValue)
			if err != nil {
				return nil, err
			}
			opts.KernelPages = n
		case "-no-fill":
			if hasValue {
				return nil, fmt.Errorf("kernel: option %s takes no value", name)
			}
			opts.FillOnFree = false
		default:
			return nil, fmt.Errorf("%w %q", ErrUnknownOption, name)
		}
	}
	return args, nil
}

func pageCount(name, value string, hasValue bool) (int, error) {
	if !hasValue || value == "" {
		return 0, fmt.Errorf("kernel: option %s requires a value", name)
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("kernel: option %s: bad page count %q", name, value)
	}
	return n, nil
}
