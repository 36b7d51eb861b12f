package system

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"host-health-agent/internal/model"
)

// ReadLoadAverage reads the 1/5/15 minute load averages from <procRoot>/loadavg.
func ReadLoadAverage(procRoot string) (model.LoadAverage, error) {
	path := filepath.Join(procRoot, "loadavg")
	f, err := os.Open(path)
	if err != nil {
		return model.LoadAverage{}, Unavailable("open "+path, err)
	}
	defer f.Close()

	load, err := ParseLoadAverage(f)
	if err != nil {
		return model.LoadAverage{}, Unavailable("parse "+path, err)
	}
	return load, nil
}

func ParseLoadAverage(r io.Reader) (model.LoadAverage, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return model.LoadAverage{}, fmt.Errorf("read loadavg: %w", err)
	}
	fields := strings.Fields(strings.TrimSpace(string(raw)))
	if len(fields) < 3 {
		return model.LoadAverage{}, fmt.Errorf("unexpected loadavg content: %q", string(raw))
	}

	var vals [3]float64
	for i := range vals {
		v, convErr := strconv.ParseFloat(fields[i], 64)
		if convErr != nil {
			return model.LoadAverage{}, fmt.Errorf("parse load %q: %w", fields[i], convErr)
		}
		if v < 0 {
			return model.LoadAverage{}, fmt.Errorf("negative load %q", fields[i])
		}
		vals[i] = v
	}
	return model.LoadAverage{Last1Min: vals[0], Last5Min: vals[1], Last15Min: vals[2]}, nil
}
