package aegisvault

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/bits"
	"runtime"
	"sync"
	"time"
)

// CheckResult is the outcome of one self-test check
type CheckResult struct {
	Name     string
	Err      error
	Warning  string
	Duration time.Duration
}

// Passed reports whether the check succeeded
func (r CheckResult) Passed() bool {
	return r.Err == nil
}

// SelfTestReport collects every check run by SelfTest, in a stable order
type SelfTestReport struct {
	Results []CheckResult
	// BitRatio is the fraction of set bits across the random samples
	BitRatio float64
}

// Passed reports whether every check succeeded
func (r SelfTestReport) Passed() bool {
	for _, c := range r.Results {
		if !c.Passed() {
			return false
		}
	}
	return true
}

// Warnings returns the non-fatal findings
func (r SelfTestReport) Warnings() []string {
	var out []string
	for _, c := range r.Results {
		if c.Warning != "" {
			out = append(out, c.Name+": "+c.Warning)
		}
	}
	return out
}

type selfCheck struct {
	name string
	run  func() (warning string, err error)
}

var (
	selfTestPassword = []byte("TestPassword123!")
	selfTestPayload  = []byte("AegisVault self-test payload")
	selfTestAAD      = []byte("self-test")
)

// known digests of "abc"
var hashVectors = map[HashID]string{
	HashSHA256:     "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
	HashSHA512:     "ddaf35a193617abacc417349ae20413112e6fa4e89a97ea20a9eeee64b55d39a2192992a274fc1a836ba3c23a3feebbd454d4423643ce80e2a9ac94fa54ca49f",
	HashSHA3256:    "3a985da74fe225b2045c172d6bd390bd855f086e3e9d525b46bfe24511431532",
	HashBLAKE2b512: "ba80a53f981c4d0d6a2797b69f12f6e94c212f14685ac4b74b12bb6fdbffa2d17d87c5392aab792dc252d5de4533cc9518d38aa8dbf1925ab92386edd4009923",
	HashBLAKE2s256: "508c5e8c327c14e2e1a72ba34eeb452f37458b209ed63a294d999b4c86675982",
}

// SelfTest exercises every cipher, KDF and hash reg permits, plus the
// system random source. Checks run on a worker pool bounded by the CPU
// count. The returned error names the first failing check.
func SelfTest(ctx context.Context, reg *Registry) (SelfTestReport, error) {
	var checks []selfCheck
	for _, c := range reg.Ciphers() {
		checks = append(checks, cipherCheck(c))
	}
	for _, k := range reg.KDFs() {
		checks = append(checks, kdfCheck(k))
	}
	for _, h := range reg.Hashes() {
		checks = append(checks, hashCheck(h))
	}
	var ratio float64
	checks = append(checks, randomCheck(&ratio))

	results := runChecks(ctx, checks)
	report := SelfTestReport{Results: results, BitRatio: ratio}

	if err := ctx.Err(); err != nil {
		return report, err
	}
	for _, r := range results {
		if r.Err != nil {
			return report, fmt.Errorf("self-test check %s failed: %w", r.Name, r.Err)
		}
	}
	return report, nil
}

// runChecks fans checks out to workers. A panicking check is recorded as a
// failure instead of taking the process down.
func runChecks(ctx context.Context, checks []selfCheck) []CheckResult {
	results := make([]CheckResult, len(checks))
	if len(checks) == 0 {
		return results
	}

	numWorkers := runtime.NumCPU()
	if numWorkers > len(checks) {
		numWorkers = len(checks)
	}

	var wg sync.WaitGroup
	jobChan := make(chan int, len(checks))

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobChan {
				results[idx] = runCheck(ctx, checks[idx])
			}
		}()
	}

	for i := range checks {
		jobChan <- i
	}
	close(jobChan)
	wg.Wait()

	return results
}

func runCheck(ctx context.Context, c selfCheck) (res CheckResult) {
	res.Name = c.name
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	start := time.Now()
	defer func() {
		res.Duration = time.Since(start)
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("panic in self-test worker: %v", r)
		}
	}()
	res.Warning, res.Err = c.run()
	return res
}

func cipherCheck(c Cipher) selfCheck {
	return selfCheck{name: "cipher " + c.Name(), run: func() (string, error) {
		key, err := randomBytes(c.KeySize())
		if err != nil {
			return "", err
		}
		defer wipe(key)

		ct, err := c.Encrypt(selfTestPayload, key, selfTestAAD)
		if err != nil {
			return "", err
		}
		if len(ct) <= len(selfTestPayload) {
			return "", errors.New("ciphertext is not longer than plaintext")
		}
		pt, err := c.Decrypt(ct, key, selfTestAAD)
		if err != nil {
			return "", err
		}
		if !bytes.Equal(pt, selfTestPayload) {
			return "", errors.New("round trip mismatch")
		}

		ct[len(ct)-1] ^= 0x01
		if _, err := c.Decrypt(ct, key, selfTestAAD); err == nil {
			return "", errors.New("tampered ciphertext was accepted")
		}
		return "", nil
	}}
}

func kdfCheck(k KDF) selfCheck {
	return selfCheck{name: "kdf " + k.Name(), run: func() (string, error) {
		salt := make([]byte, 32)
		for i := range salt {
			salt[i] = byte(i)
		}

		a, err := k.DeriveKey(selfTestPassword, salt, 32)
		if err != nil {
			return "", err
		}
		defer a.Destroy()
		b, err := k.DeriveKey(selfTestPassword, salt, 32)
		if err != nil {
			return "", err
		}
		defer b.Destroy()

		if a.Len() != 32 {
			return "", fmt.Errorf("derived %d bytes, want 32", a.Len())
		}
		if !a.Equal(b) {
			return "", errors.New("derivation is not deterministic")
		}
		if allZero(a.bytes()) {
			return "", errors.New("derived key is all zero")
		}
		return "", nil
	}}
}

func hashCheck(h Hash) selfCheck {
	return selfCheck{name: "hash " + h.Name(), run: func() (string, error) {
		sum := h.Sum([]byte("abc"))
		if len(sum) != h.Size() {
			return "", fmt.Errorf("digest is %d bytes, want %d", len(sum), h.Size())
		}
		if want, ok := hashVectors[h.ID()]; ok && hex.EncodeToString(sum) != want {
			return "", errors.New("known-answer digest mismatch")
		}
		return "", nil
	}}
}

func randomCheck(ratio *float64) selfCheck {
	return selfCheck{name: "random", run: func() (string, error) {
		a, err := randomBytes(32)
		if err != nil {
			return "", err
		}
		b, err := randomBytes(32)
		if err != nil {
			return "", err
		}
		if bytes.Equal(a, b) {
			return "", errors.New("two random draws are identical")
		}

		ones := 0
		for _, x := range append(a, b...) {
			ones += bits.OnesCount8(x)
		}
		*ratio = float64(ones) / float64(8*(len(a)+len(b)))
		if *ratio < 0.3 || *ratio > 0.7 {
			return fmt.Sprintf("bit ratio %.2f outside 0.3-0.7", *ratio), nil
		}
		return "", nil
	}}
}

func allZero(b []byte) bool {
	for _, x := range b {
		if x != 0 {
			return false
		}
	}
	return true
}
