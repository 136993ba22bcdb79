package pipeline

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/filedepot/filedepot/ledger"
)

// checkpointEvery is the row interval at which the ingest handler refreshes
// its heartbeat and checks for cancellation.
const checkpointEvery = 1000

// IngestHandler normalizes an uploaded table file into a canonical CSV
// artifact: fields trimmed, fully empty rows dropped, ragged rows preserved.
func IngestHandler(ctx context.Context, task *Task) ([]string, error) {
	in, err := task.Input(ctx)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	rows := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rows+1, err)
		}

		empty := true
		for i, field := range record {
			record[i] = strings.TrimSpace(field)
			if record[i] != "" {
				empty = false
			}
		}
		if empty {
			continue
		}

		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("row %d: %w", rows+1, err)
		}
		rows++

		if rows%checkpointEvery == 0 {
			if err := task.Checkpoint(ctx); err != nil {
				return nil, err
			}
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, fmt.Errorf("input contains no data rows")
	}

	artifact, err := task.PutOutput(ctx, bytes.NewReader(buf.Bytes()))
	if err != nil {
		return nil, err
	}
	return []string{artifact.Ref}, nil
}

// ExportHandler bundles the outputs of a completed job into a single zip
// artifact. For export jobs the input reference is the source job's
// identifier rather than an artifact reference.
func ExportHandler(ctx context.Context, task *Task) ([]string, error) {
	source, err := task.Ledger().Get(ctx, task.Job.InputRef)
	if err != nil {
		return nil, fmt.Errorf("source job: %w", err)
	}
	if source.Status != ledger.StatusCompleted {
		return nil, fmt.Errorf("source job %s is %s, not completed", source.ID, source.Status)
	}
	if len(source.OutputRefs) == 0 {
		return nil, fmt.Errorf("source job %s has no outputs", source.ID)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for i, ref := range source.OutputRefs {
		if err := task.Checkpoint(ctx); err != nil {
			return nil, err
		}

		rc, err := task.Store().Get(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("output %s: %w", ref, err)
		}

		entry, err := zw.Create(fmt.Sprintf("output-%04d.csv", i+1))
		if err != nil {
			rc.Close()
			return nil, err
		}
		if _, err := io.Copy(entry, rc); err != nil {
			rc.Close()
			return nil, fmt.Errorf("output %s: %w", ref, err)
		}
		rc.Close()
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}

	artifact, err := task.PutOutput(ctx, bytes.NewReader(buf.Bytes()))
	if err != nil {
		return nil, err
	}
	return []string{artifact.Ref}, nil
}

// RegisterBuiltInHandlers installs the ingest and export handlers.
func RegisterBuiltInHandlers(p *Pipeline) {
	p.Register(ledger.KindIngest, IngestHandler)
	p.Register(ledger.KindExport, ExportHandler)
}
