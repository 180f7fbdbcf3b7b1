package storage

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental-digest/models"
)

func TestCSVWriterWritesHeaderAndRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "raw.csv")

	w, err := NewCSVWriter(path)
	require.NoError(t, err)

	err = w.WriteRaw([]*models.RawListing{
		{Source: "Apolar", RequestedNeighborhood: "batel", Address: "Batel, Curitiba", Price: "R$ 2.100,00",
			Link: "https://www.apolar.com.br/imovel/1", ScrapedAt: time.Now()},
		{Source: "Galvão", RequestedNeighborhood: "centro", Price: "1.800", Link: "https://www.galvao.com.br/2", ScrapedAt: time.Now()},
	})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "source", records[0][0])
	assert.Equal(t, "R$ 2.100,00", records[1][4])
	assert.Equal(t, "Galvão", records[2][0])
}
