// Package units provides byte-size arithmetic and formatting for disk
// capacities.
//
// Sizes follow Apple's decimal convention (1 GB = 1,000,000,000 bytes), which
// is what diskutil reports in TotalSize and prints in its own summaries.
// The package also renders sizes in the argument grammar understood by
// diskutil partitionDisk ("85.3G", "512M").
package units

import "fmt"

// Byte-size constants, decimal (Apple convention).
const (
	KB int64 = 1_000
	MB int64 = 1_000 * KB
	GB int64 = 1_000 * MB
	TB int64 = 1_000 * GB
)

// FormatGB renders a byte count as a human-readable decimal-gigabyte string,
// e.g. "85.3 GB".
func FormatGB(bytes int64) string {
	return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
}

// FormatSize renders a byte count with the largest fitting unit, e.g.
// "1.5 TB", "85.3 GB", "512 MB".
func FormatSize(bytes int64) string {
	switch {
	case bytes >= TB:
		return fmt.Sprintf("%.1f TB", float64(bytes)/float64(TB))
	case bytes >= GB:
		return FormatGB(bytes)
	case bytes >= MB:
		return fmt.Sprintf("%.0f MB", float64(bytes)/float64(MB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// DiskutilSize renders a byte count as a diskutil partitionDisk size
// argument. Sizes of one gigabyte or more use the G suffix with one decimal,
// smaller sizes use whole megabytes.
func DiskutilSize(bytes int64) string {
	if bytes >= GB {
		return fmt.Sprintf("%.1fG", float64(bytes)/float64(GB))
	}
	mb := (bytes + MB - 1) / MB
	return fmt.Sprintf("%dM", mb)
}

