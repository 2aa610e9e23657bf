package app

import "syscall"

// diskUsage returns usage stats for the filesystem holding path, or nil
// on error. Available counts blocks an unprivileged writer can use,
// which is what matters before committing to a long recording.
func diskUsage(path string) map[string]any {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return nil
	}
	bs := uint64(stat.Bsize)
	total := stat.Blocks * bs
	avail := stat.Bavail * bs
	used := total - stat.Bfree*bs

	var pct float64
	if total > 0 {
		pct = float64(used) / float64(total) * 100
	}
	return map[string]any{
		"total_bytes":     total,
		"used_bytes":      used,
		"available_bytes": avail,
		"used_percent":    pct,
	}
}
