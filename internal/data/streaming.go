package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/remidefleurian/ochim/internal/fileutil"
)

// StreamingReader walks a partition file record by record so partitions can
// be concatenated without holding them in memory.
type StreamingReader struct {
	file    *os.File
	reader  *csv.Reader
	headers []string
}

func NewStreamingReader(filename string) (*StreamingReader, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	reader := csv.NewReader(file)
	headers, err := reader.Read()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to read headers of %s: %w", filename, err)
	}

	return &StreamingReader{file: file, reader: reader, headers: headers}, nil
}

func (sr *StreamingReader) Headers() []string {
	return sr.headers
}

// Next returns the next record or io.EOF.
func (sr *StreamingReader) Next() ([]string, error) {
	return sr.reader.Read()
}

func (sr *StreamingReader) Close() error {
	return sr.file.Close()
}

// Combine concatenates the partition files into dst, keeping the header of
// the first partition. Every partition must share that header. dst is
// replaced atomically; the number of data rows written is returned.
func Combine(dst string, partitions []string) (int, error) {
	if len(partitions) == 0 {
		return 0, fmt.Errorf("no partition files to combine")
	}

	rows := 0
	err := fileutil.WriteAtomic(dst, 0o644, func(w io.Writer) error {
		writer := csv.NewWriter(w)
		var headers []string

		for _, path := range partitions {
			reader, err := NewStreamingReader(path)
			if err != nil {
				return err
			}

			if headers == nil {
				headers = reader.Headers()
				if err := writer.Write(headers); err != nil {
					reader.Close()
					return fmt.Errorf("write headers: %w", err)
				}
			} else if !slices.Equal(headers, reader.Headers()) {
				reader.Close()
				return fmt.Errorf("partition %s: header does not match %s", path, partitions[0])
			}

			n, err := copyRecords(writer, reader)
			reader.Close()
			if err != nil {
				return fmt.Errorf("partition %s: %w", path, err)
			}
			rows += n
		}

		writer.Flush()
		return writer.Error()
	})
	if err != nil {
		return 0, err
	}
	return rows, nil
}

func copyRecords(writer *csv.Writer, reader *StreamingReader) (int, error) {
	n := 0
	for {
		record, err := reader.Next()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("error reading record: %w", err)
		}
		if err := writer.Write(record); err != nil {
			return n, fmt.Errorf("write record: %w", err)
		}
		n++
	}
}
