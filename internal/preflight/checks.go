package preflight

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"takevault/internal/config"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies that the filesystem holding path has at least
// minFreeGiB available. A minimum of zero disables the check.
func CheckFreeSpace(path string, minFreeGiB int) Result {
	return checkFreeSpaceWith(path, minFreeGiB, realStatfs)
}

func checkFreeSpaceWith(path string, minFreeGiB int, statfs func(string) (uint64, error)) Result {
	const name = "Free space"

	if minFreeGiB <= 0 {
		return Result{Name: name, Passed: true, Detail: "check disabled"}
	}

	free, err := statfs(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}

	needed := uint64(minFreeGiB) * 1024 * 1024 * 1024
	freeGiB := float64(free) / (1024 * 1024 * 1024)
	if free < needed {
		return Result{Name: name, Detail: fmt.Sprintf("%.1f GiB free, need %d GiB", freeGiB, minFreeGiB)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%.1f GiB free", freeGiB)}
}

// CheckProvider verifies that the synthesis API is reachable and the key is
// accepted. It uses a short timeout and a single attempt.
func CheckProvider(ctx context.Context, cfg config.Provider) Result {
	const name = "Synthesis provider"

	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing base url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, base+"/v1/voices", nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("auth check failed (%v)", err)}
	}
	req.Header.Set("xi-api-key", strings.TrimSpace(cfg.APIKey))

	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("auth check failed (%v)", err)}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return Result{Name: name, Passed: true, Detail: "API reachable"}
	case http.StatusUnauthorized, http.StatusForbidden:
		return Result{Name: name, Detail: "auth failed (invalid api key)"}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("auth check failed (%d)", resp.StatusCode)}
	}
}

func realStatfs(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}
