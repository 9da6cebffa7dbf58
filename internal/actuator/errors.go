package actuator

import (
	"errors"
	"fmt"
	"strings"

	"governor/internal/posture"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrTimeout       = errors.New("timeout")
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that names the failing subsystem and operation
// while tagging it with the provided marker for later classification. The
// marker should be one of the exported sentinel errors above.
func Wrap(marker error, subsystem posture.Subsystem, operation string, err error) error {
	detail := buildDetail(string(subsystem), operation)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(subsystem, operation string) string {
	parts := make([]string, 0, 2)
	if subsystem = strings.TrimSpace(subsystem); subsystem != "" {
		parts = append(parts, subsystem)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if len(parts) == 0 {
		return "actuation failure"
	}
	return strings.Join(parts, ": ")
}
