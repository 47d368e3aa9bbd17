package archive

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"pharchive/fetch"
	"pharchive/models"
	"pharchive/rss"
)

// Courtesy delay between items in a partition, kept short so runs stay fast.
const (
	delayMin = 1 * time.Second
	delayMax = 3 * time.Second
)

// Fetcher retrieves the raw body of one feed URL.
type Fetcher interface {
	Fetch(url string) (string, error)
}

// Runner archives the targets of one language partition sequentially.
type Runner struct {
	Root           string
	ArchiveBaseURL string
	Fetcher        Fetcher
	Sleep          func(time.Duration)
}

func NewRunner(root string, archiveBaseURL string) *Runner {
	return &Runner{
		Root:           root,
		ArchiveBaseURL: archiveBaseURL,
		Fetcher:        fetch.New(),
		Sleep:          time.Sleep,
	}
}

// ProcessPartition runs the fetch-normalize-persist pipeline over the
// partition's targets in worklist order. Target-scoped problems are
// accumulated as failures and processing continues; only a persistence
// fault aborts the partition, reported via the returned error.
func (r *Runner) ProcessPartition(targets []models.Target) ([]models.Failure, error) {
	var failures []models.Failure
	for _, entry := range targets {
		if entry.Filepath == "" {
			log.Errorf("Entry missing filepath for URL: %s", orPlaceholder(entry.URL))
			failures = append(failures, models.Failure{
				URL:      orPlaceholder(entry.URL),
				Filepath: "[MISSING FILEPATH]",
				Lang:     entry.Lang,
				Kind:     models.FailureMissingFilepath,
			})
			continue
		}

		destination, ok := r.safePath(entry.Filepath)
		if !ok {
			log.Errorf("Unsafe filepath detected: %s", destination)
			failures = append(failures, models.Failure{
				URL:      orPlaceholder(entry.URL),
				Filepath: destination,
				Lang:     entry.Lang,
				Kind:     models.FailureUnsafeFilepath,
			})
			continue
		}

		if entry.URL == "" {
			log.Errorf("Entry missing URL for filepath: %s", destination)
			failures = append(failures, models.Failure{
				URL:      "[MISSING URL]",
				Filepath: destination,
				Lang:     entry.Lang,
				Kind:     models.FailureMissingURL,
			})
			continue
		}

		// A non-empty destination counts as a valid prior archive. Contents
		// are never verified; snapshots are immutable once written.
		if info, err := os.Stat(destination); err == nil && info.Size() > 0 {
			log.Infof("Skipping %s -> %s (file exists and is non-empty)", entry.URL, destination)
			continue
		}

		log.Infof("Processing %s -> %s", entry.URL, destination)

		content, err := r.Fetcher.Fetch(entry.URL)
		if err != nil {
			log.Errorf("Failed to fetch content for %s: %v", entry.URL, err)
			failures = append(failures, models.Failure{
				URL:      entry.URL,
				Filepath: destination,
				Lang:     entry.Lang,
				Kind:     models.FailureFetch,
				Detail:   err.Error(),
			})
		} else if err := rss.Validate(content); err != nil {
			log.Errorf("Invalid XML content for %s: %v", entry.URL, err)
			failures = append(failures, models.Failure{
				URL:      entry.URL,
				Filepath: destination,
				Lang:     entry.Lang,
				Kind:     models.FailureInvalidXML,
				Detail:   err.Error(),
			})
			continue
		} else if document, err := rss.Normalize(content, r.ArchiveBaseURL); err != nil {
			log.Errorf("RSS transformation failed for %s: %v", entry.URL, err)
			failures = append(failures, models.Failure{
				URL:      entry.URL,
				Filepath: destination,
				Lang:     entry.Lang,
				Kind:     models.FailureTransform,
				Detail:   err.Error(),
			})
			continue
		} else if err := persist(destination, document); err != nil {
			return failures, err
		} else {
			log.Infof("Saved content for %s to %s", entry.URL, destination)
		}

		delay := delayMin + time.Duration(rand.Int63n(int64(delayMax-delayMin)))
		log.Infof("Sleeping for %.2f seconds...", delay.Seconds())
		r.Sleep(delay)
	}
	return failures, nil
}

// safePath resolves target against the output root and reports whether the
// result stays inside it. Symlinks are resolved before the containment
// check so a link inside the root cannot smuggle writes outside it.
// Anything escaping the root is rejected before a fetch is ever attempted.
func (r *Runner) safePath(target string) (string, bool) {
	root, err := filepath.Abs(r.Root)
	if err != nil {
		return target, false
	}
	root = resolveExisting(root)
	destination, err := filepath.Abs(filepath.Join(r.Root, target))
	if err != nil {
		return target, false
	}
	rel, err := filepath.Rel(root, resolveExisting(destination))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return destination, false
	}
	return destination, true
}

// resolveExisting resolves symlinks in the longest existing ancestor of
// path, the way realpath treats files that do not exist yet.
func resolveExisting(path string) string {
	current := path
	suffix := ""
	for {
		if real, err := filepath.EvalSymlinks(current); err == nil {
			return filepath.Join(real, suffix)
		}
		parent := filepath.Dir(current)
		if parent == current {
			return path
		}
		suffix = filepath.Join(filepath.Base(current), suffix)
		current = parent
	}
}

func persist(destination string, document string) error {
	if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", destination, err)
	}
	if err := os.WriteFile(destination, []byte(document), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", destination, err)
	}
	return nil
}

// EnsureFolders creates the parent directory for every expanded target up
// front, before any fetching begins. Targets whose filepath would escape
// the root are skipped here and rejected again by the runner.
func EnsureFolders(root string, worklist []models.Target) {
	runner := Runner{Root: root}
	for _, entry := range worklist {
		if entry.Filepath == "" {
			log.Errorf("Entry missing filepath for URL: %s", orPlaceholder(entry.URL))
			continue
		}
		destination, ok := runner.safePath(entry.Filepath)
		if !ok {
			log.Warnf("Skipping folder creation for unsafe filepath: %s", destination)
			continue
		}
		log.Infof("Creating parent directory for: %s", destination)
		if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
			log.Errorf("Failed to create directory for %s: %v", destination, err)
		}
	}
}

type partitionResult struct {
	lang     string
	failures []models.Failure
}

// Run partitions the worklist by language tag and archives each partition
// in its own goroutine. Items within a partition stay strictly serial; a
// fault in one partition never affects the others. The concatenated
// failure list is returned once every partition has finished.
func Run(worklist []models.Target, runner *Runner) []models.Failure {
	groups := lo.GroupBy(worklist, func(entry models.Target) string {
		if entry.Lang == "" {
			return "default"
		}
		return entry.Lang
	})

	results := make(chan partitionResult, len(groups))
	var wg sync.WaitGroup

	for lang, partition := range groups {
		wg.Add(1)
		go func(lang string, partition []models.Target) {
			defer wg.Done()
			defer func() {
				if fault := recover(); fault != nil {
					log.Errorf("Language group %s generated a fault: %v", lang, fault)
					results <- partitionResult{lang: lang, failures: []models.Failure{{
						Lang:   lang,
						Kind:   models.FailurePartition,
						Detail: fmt.Sprint(fault),
					}}}
				}
			}()

			failures, err := runner.ProcessPartition(partition)
			if err != nil {
				log.Errorf("Language group %s aborted: %v", lang, err)
				failures = append(failures, models.Failure{
					Lang:   lang,
					Kind:   models.FailurePartition,
					Detail: err.Error(),
				})
			} else {
				log.Infof("Finished processing language group: %s", lang)
			}
			results <- partitionResult{lang: lang, failures: failures}
		}(lang, partition)
	}

	wg.Wait()
	close(results)

	var failures []models.Failure
	for result := range results {
		failures = append(failures, result.failures...)
	}
	return failures
}

func orPlaceholder(url string) string {
	if url == "" {
		return "[NO URL]"
	}
	return url
}
