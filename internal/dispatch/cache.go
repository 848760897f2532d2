package dispatch

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"

	"github.com/unkn0wn-root/patchcat/internal/model"
)

// CacheKey fingerprints a request and its response for analysis dedup. Two
// sends with the same method, URL, body, status and data share a key.
func CacheKey(req model.Request, resp model.Response) string {
	h := sha256.New()
	write := func(b []byte) {
		h.Write([]byte(strconv.Itoa(len(b))))
		h.Write([]byte{':'})
		h.Write(b)
	}
	body, _ := json.Marshal(req.Body)
	data, _ := json.Marshal(resp.Data)
	write([]byte(req.Method))
	write([]byte(req.URL))
	write(body)
	write([]byte(strconv.Itoa(resp.Status)))
	write(data)
	return hex.EncodeToString(h.Sum(nil))
}
