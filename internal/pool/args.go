package pool

import (
	"fmt"
	"strconv"

	"github.com/agentic-research/pmemctl/internal/ctl"
)

// The control entry points take opaque arguments. Read arguments are typed
// destination pointers (*string always works, for CLI use); write arguments
// are typed values or the textual form a config provider yields.

func storeUint(arg any, v uint64) error {
	switch out := arg.(type) {
	case *uint64:
		*out = v
	case *int64:
		*out = int64(v)
	case *string:
		*out = strconv.FormatUint(v, 10)
	default:
		return fmt.Errorf("%w: unsupported read argument %T", ctl.ErrInvalidArguments, arg)
	}
	return nil
}

func storeBool(arg any, v bool) error {
	switch out := arg.(type) {
	case *bool:
		*out = v
	case *uint64:
		*out = 0
		if v {
			*out = 1
		}
	case *string:
		*out = "0"
		if v {
			*out = "1"
		}
	default:
		return fmt.Errorf("%w: unsupported read argument %T", ctl.ErrInvalidArguments, arg)
	}
	return nil
}

func argUint(arg any) (uint64, error) {
	switch v := arg.(type) {
	case uint64:
		return v, nil
	case int64:
		if v < 0 {
			return 0, fmt.Errorf("%w: negative value %d", ctl.ErrInvalidArguments, v)
		}
		return uint64(v), nil
	case int:
		if v < 0 {
			return 0, fmt.Errorf("%w: negative value %d", ctl.ErrInvalidArguments, v)
		}
		return uint64(v), nil
	case string:
		u, err := strconv.ParseUint(v, 0, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not an unsigned integer", ctl.ErrInvalidArguments, v)
		}
		return u, nil
	}
	return 0, fmt.Errorf("%w: unsupported write argument %T", ctl.ErrInvalidArguments, arg)
}

func argBool(arg any) (bool, error) {
	switch v := arg.(type) {
	case bool:
		return v, nil
	case int:
		return v != 0, nil
	case int64:
		return v != 0, nil
	case uint64:
		return v != 0, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("%w: %q is not a boolean", ctl.ErrInvalidArguments, v)
		}
		return b, nil
	}
	return false, fmt.Errorf("%w: unsupported write argument %T", ctl.ErrInvalidArguments, arg)
}
