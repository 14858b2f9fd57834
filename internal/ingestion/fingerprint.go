package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/carbonmarket/iot-ingestion/internal/model"
)

// Fingerprint computes the deterministic content hash of a reading over
// its canonical fields {deviceId, sensorType, timestamp, value, unit}.
// Metadata is deliberately excluded so optional annotations never change
// the identity of a reading. The digest doubles as a dedup key and a
// tamper-evidence token.
func Fingerprint(r model.SensorReading) (string, error) {
	if r.DeviceID == "" || r.SensorType == "" {
		return "", fmt.Errorf("fingerprint: reading missing device or sensor type")
	}
	if r.Timestamp.IsZero() {
		return "", fmt.Errorf("fingerprint: reading has no timestamp")
	}

	// Fixed field order and explicit encodings keep the digest independent
	// of how the source payload happened to be laid out.
	var b strings.Builder
	b.WriteString(r.DeviceID)
	b.WriteByte('|')
	b.WriteString(r.SensorType)
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(r.Timestamp.UTC().UnixNano(), 10))
	b.WriteByte('|')
	b.WriteString(strconv.FormatFloat(r.Value, 'g', -1, 64))
	b.WriteByte('|')
	b.WriteString(r.Unit)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:]), nil
}
