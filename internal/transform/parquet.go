package transform

import (
	"bytes"
	"fmt"

	"github.com/parquet-go/parquet-go"

	"github.com/loglens/loglens/internal/logparse"
)

// parquetRecord mirrors logparse.Record; an empty id is written as null.
type parquetRecord struct {
	Timestamp string `parquet:"timestamp"`
	Level     string `parquet:"level"`
	Message   string `parquet:"message"`
	ID        string `parquet:"id,optional"`
}

func EncodeParquet(records []logparse.Record) ([]byte, error) {
	rows := make([]parquetRecord, 0, len(records))
	for _, record := range records {
		rows = append(rows, parquetRecord{
			Timestamp: record.Timestamp,
			Level:     string(record.Level),
			Message:   record.Message,
			ID:        record.ID,
		})
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[parquetRecord](buf)
	if _, err := writer.Write(rows); err != nil {
		return nil, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}
