package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gingerrexayers/jffs2-go/internal/jffs2/lib"
	"github.com/gingerrexayers/jffs2-go/internal/jffs2/types"
)

// fileExtractJob holds the information needed for a worker to write one file.
type fileExtractJob struct {
	File            *lib.File
	DestinationPath string
	Mode            os.FileMode
	ModTime         int64
}

// extractFileWorker is the logic executed by each goroutine in the pool.
// It materializes a file's content and writes it to its destination.
func extractFileWorker(wg *sync.WaitGroup, jobs <-chan fileExtractJob, errs chan<- error, written *atomic.Int64) {
	defer wg.Done()
	for job := range jobs {
		content, err := job.File.Content()
		if err != nil {
			errs <- fmt.Errorf("failed to materialize %s: %w", job.DestinationPath, err)
			continue
		}
		if err := lib.WriteFileSync(job.DestinationPath, content, job.Mode); err != nil {
			errs <- fmt.Errorf("failed to write %s: %w", job.DestinationPath, err)
			continue
		}
		// The open mode is filtered by the umask; restore the exact bits.
		if err := os.Chmod(job.DestinationPath, job.Mode); err != nil {
			errs <- fmt.Errorf("failed to set mode on %s: %w", job.DestinationPath, err)
			continue
		}
		if job.ModTime != 0 {
			mtime := time.Unix(job.ModTime, 0)
			if err := os.Chtimes(job.DestinationPath, mtime, mtime); err != nil {
				errs <- fmt.Errorf("failed to set times on %s: %w", job.DestinationPath, err)
				continue
			}
		}
		written.Add(1)
	}
}

// extractedDir remembers a created directory so its mode and mtime can be
// applied after its contents are in place.
type extractedDir struct {
	path  string
	entry types.Entry
}

// Extract is the main function for the 'extract' command. It materializes
// the reconstructed tree under outputDir, best effort: individual file
// failures are aggregated and reported, not fatal.
func Extract(imagePath, outputDir string, opts Options) error {
	img, err := lib.Open(imagePath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", imagePath, err)
	}
	absOutputDir, err := filepath.Abs(outputDir)
	if err != nil {
		return fmt.Errorf("could not resolve output path: %w", err)
	}
	excludes, err := lib.NewExcludeMatcher(opts.Excludes, opts.ExcludeFrom)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(absOutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	fmt.Printf("Extracting \"%s\" to \"%s\"...\n", imagePath, absOutputDir)

	// Set up the worker pool for file content.
	jobs := make(chan fileExtractJob, 100)
	errs := make(chan error, 100)
	var wg sync.WaitGroup
	var written atomic.Int64
	numWorkers := opts.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go extractFileWorker(&wg, jobs, errs, &written)
	}

	// Drain worker errors as they happen. If errs filled up the workers
	// would stall and the walk behind them would never finish.
	var workerErrs []error
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for workerErr := range errs {
			workerErrs = append(workerErrs, workerErr)
		}
	}()

	// The walk visits parents before children, so a directory exists on
	// disk before any job targeting its contents is queued.
	var extractErrs []error
	var dirs []extractedDir
	walkErr := img.Walk(func(e types.Entry) error {
		if excludes.Excluded(e.Path, e.IsDir()) {
			return nil
		}
		dest := filepath.Join(absOutputDir, filepath.FromSlash(e.Path))
		switch e.Type {
		case types.DTDir:
			if err := os.MkdirAll(dest, 0755); err != nil {
				extractErrs = append(extractErrs, fmt.Errorf("failed to create directory %s: %w", dest, err))
				return nil
			}
			dirs = append(dirs, extractedDir{path: dest, entry: e})
		case types.DTReg:
			f, ok := img.File(e.Ino)
			if !ok || !e.Available {
				extractErrs = append(extractErrs, fmt.Errorf("%s: content unavailable (inode %d)", e.Path, e.Ino))
				return nil
			}
			job := fileExtractJob{
				File:            f,
				DestinationPath: dest,
				Mode:            os.FileMode(e.Mode & 0o777),
			}
			if !e.ModTime.IsZero() {
				job.ModTime = e.ModTime.Unix()
			}
			jobs <- job
		case types.DTLnk:
			if !e.Available {
				extractErrs = append(extractErrs, fmt.Errorf("%s: link target unavailable (inode %d)", e.Path, e.Ino))
				return nil
			}
			os.Remove(dest)
			if err := os.Symlink(e.Target, dest); err != nil {
				extractErrs = append(extractErrs, fmt.Errorf("failed to create symlink %s: %w", dest, err))
			}
		default:
			// Device nodes, fifos and sockets need privileges the
			// extraction side does not assume.
			extractErrs = append(extractErrs, fmt.Errorf("%s: skipping special entry of type %d", e.Path, e.Type))
		}
		return nil
	})
	close(jobs)
	wg.Wait()
	close(errs)
	<-collected

	if walkErr != nil {
		return fmt.Errorf("failed during tree traversal: %w", walkErr)
	}
	extractErrs = append(extractErrs, workerErrs...)

	// Apply directory metadata deepest-first, after the contents settled.
	for i := len(dirs) - 1; i >= 0; i-- {
		d := dirs[i]
		if d.entry.Mode != 0 {
			if err := os.Chmod(d.path, os.FileMode(d.entry.Mode&0o777)); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: could not set mode on directory %s: %v\n", d.path, err)
			}
		}
		if !d.entry.ModTime.IsZero() {
			if err := os.Chtimes(d.path, d.entry.ModTime, d.entry.ModTime); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: could not set times on directory %s: %v\n", d.path, err)
			}
		}
	}

	diags := img.Diagnostics()
	for _, d := range diags {
		warnColor.Printf("warning: %s at offset %d: %s\n", d.Kind, d.Offset, d.Detail)
	}
	for _, e := range extractErrs {
		warnColor.Printf("warning: %v\n", e)
	}
	fmt.Printf("Extracted %d files and %d directories", written.Load(), len(dirs))
	if len(extractErrs) > 0 {
		fmt.Printf(", %d failures", len(extractErrs))
	}
	fmt.Println(".")

	if opts.Strict && (len(extractErrs) > 0 || len(diags) > 0) {
		return fmt.Errorf("strict mode: %d extraction failures, %d diagnostics", len(extractErrs), len(diags))
	}
	return nil
}
