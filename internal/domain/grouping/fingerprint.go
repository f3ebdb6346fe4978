package grouping

import (
	"encoding/binary"
	"encoding/hex"
	"math"

	"golang.org/x/crypto/blake2b"

	"github.com/metrocollab/grouper/internal/domain/roster"
)

// FingerprintInput - всё, от чего зависит результат запуска: вход,
// настройки поиска центров и таблица эмбеддингов.
type FingerprintInput struct {
	Records  []roster.StudentRecord
	Bounds   Bounds
	Seed     int64
	Strategy string

	Restarts      int
	MaxIterations int
	Tolerance     float64

	EmbeddingDim      int
	EmbeddingIdentity string
}

// Fingerprint возвращает hex BLAKE2b-256 от входа запуска. Одинаковый вход
// даёт одинаковый отпечаток, поэтому по нему кешируются результаты.
// Порядок записей значим: он определяет порядок ID внутри групп.
func Fingerprint(in FingerprintInput) string {
	h, _ := blake2b.New256(nil)

	writeInt := func(v int64) {
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], uint64(v))
		h.Write(buf[:])
	}
	writeString := func(s string) {
		writeInt(int64(len(s)))
		h.Write([]byte(s))
	}
	writeStrings := func(ss []string) {
		writeInt(int64(len(ss)))
		for _, s := range ss {
			writeString(s)
		}
	}

	writeString("grouper/v2")
	writeInt(int64(in.Bounds.MinSize))
	writeInt(int64(in.Bounds.MaxSize))
	writeInt(in.Seed)
	writeString(in.Strategy)
	writeInt(int64(in.Restarts))
	writeInt(int64(in.MaxIterations))
	writeInt(int64(math.Float64bits(in.Tolerance)))
	writeInt(int64(in.EmbeddingDim))
	writeString(in.EmbeddingIdentity)

	writeInt(int64(len(in.Records)))
	for _, r := range in.Records {
		writeString(r.ID)
		writeStrings(r.Skills)
		writeStrings(r.Interests)
		writeStrings(r.Availability.Slots())
		writeString(string(r.HoursBucket))
	}

	return hex.EncodeToString(h.Sum(nil))
}

