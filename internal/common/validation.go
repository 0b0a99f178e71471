package common

import (
	"fmt"
	"slices"

	"artyats/internal/types"
)

// ValidateOutputFormat validates format against configured supported formats
func ValidateOutputFormat(format string, supportedFormats []string) error {
	if len(supportedFormats) == 0 {
		return nil // No restrictions configured
	}

	if slices.Contains(supportedFormats, format) {
		return nil
	}

	return fmt.Errorf("unsupported output format '%s'. Supported formats: %v",
		format, supportedFormats)
}

// ValidateEmploymentStatus rejects anything but employed, unemployed or student.
func ValidateEmploymentStatus(status string) (types.EmploymentStatus, error) {
	s := types.EmploymentStatus(status)
	if !s.Valid() {
		return "", fmt.Errorf("invalid employment status '%s' (must be employed, unemployed or student)", status)
	}
	return s, nil
}

// ValidateCommunicationStyle accepts casual or formal; empty means formal.
func ValidateCommunicationStyle(style string) (types.CommunicationStyle, error) {
	switch s := types.CommunicationStyle(style); s {
	case "":
		return types.StyleFormal, nil
	case types.StyleCasual, types.StyleFormal:
		return s, nil
	default:
		return "", fmt.Errorf("invalid communication style '%s' (must be casual or formal)", style)
	}
}
