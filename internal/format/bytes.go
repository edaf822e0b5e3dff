package format

import "fmt"

// Bytes formats a byte count using binary units (B, KB, MB, ...).
func Bytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

// Rate formats a bytes-per-second rate.
func Rate(bytesPerSec uint64) string {
	return Bytes(bytesPerSec) + "/s"
}

// Percent formats a 0..1 share as a percentage with no decimals.
func Percent(share float64) string {
	return fmt.Sprintf("%.0f%%", share*100)
}
