package wrapper

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/benoit-pierre/buildcache/internal/cacheerr"
	"github.com/benoit-pierre/buildcache/internal/facade"
	"github.com/benoit-pierre/buildcache/internal/hash"
	"github.com/benoit-pierre/buildcache/internal/store"
)

// Commander is the child-process testability seam: exec.Cmd satisfies it directly, and
// tests substitute a fake. Grounded on the teacher's Commander/execCommand pattern.
type Commander interface {
	Run() error
}

// CommandResult captures everything the driver needs back from running the
// underlying tool.
type CommandResult struct {
	Stdout     []byte
	Stderr     []byte
	ReturnCode int
}

// execCommandFunc is the injectable constructor the driver uses to create a Commander
// for a given program/args/env, mirroring CommandBuilder.execCommand in the teacher.
type execCommandFunc func(program string, args []string, env []string) (Commander, *commandBuffers)

// commandBuffers lets the default execCommandFunc capture stdout/stderr without the
// driver needing to know it's dealing with *exec.Cmd specifically.
type commandBuffers struct {
	stdout, stderr *bytes.Buffer
}

// Driver runs the fixed algorithm (HandleCommand) every wrapper is put through: resolve
// args, read capabilities, fingerprint, consult the cache, run on miss, record on
// success.
type Driver struct {
	facade      *facade.Facade
	execCommand execCommandFunc
}

// NewDriver creates a Driver backed by f, using the real os/exec child-process
// primitive.
func NewDriver(f *facade.Facade) *Driver {
	return &Driver{facade: f, execCommand: defaultExecCommand}
}

func defaultExecCommand(program string, args []string, env []string) (Commander, *commandBuffers) {
	cmd := exec.Command(program, args...)
	if len(env) > 0 {
		cmd.Env = env
	}
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.Stdout = out
	cmd.Stderr = errOut
	return cmd, &commandBuffers{stdout: out, stderr: errOut}
}

// HandleCommand is the template-method algorithm of spec.md §4.6, fixed for every
// wrapper: resolve_args, capabilities, preprocessor fingerprint, optional direct-mode
// lookup, preprocessor-mode lookup, run-on-miss, add/add_direct on success.
//
// If the wrapper fails at any step before the tool has run, the driver falls back to
// running programPath unchanged and uncached — a caching failure must never surface as
// a build failure.
func (d *Driver) HandleCommand(programPath string, args, env []string, w Wrapper, allowHardLinks, createTargetDirs bool) (int, error) {
	result, err := d.tryHandleCommand(programPath, args, env, w, allowHardLinks, createTargetDirs)
	if err == nil {
		return result, nil
	}

	// ToolExec means the underlying tool itself could not be started; retrying it
	// unchanged would fail identically, so that failure propagates as-is instead of
	// being treated as a wrapper rejection.
	if cacheerr.Is(err, cacheerr.ToolExec) {
		return 0, err
	}

	logrus.WithError(err).Warn("driver: wrapper rejected command, falling back to uncached execution")
	res, runErr := d.run(programPath, args, env)
	if runErr != nil {
		return 0, cacheerr.New(cacheerr.ToolExec, runErr)
	}
	os.Stdout.Write(res.Stdout)
	os.Stderr.Write(res.Stderr)
	return res.ReturnCode, nil
}

func (d *Driver) tryHandleCommand(programPath string, args, env []string, w Wrapper, allowHardLinks, createTargetDirs bool) (int, error) {
	resolvedArgs, err := w.ResolveArgs(args)
	if err != nil {
		return 0, fmt.Errorf("resolve_args: %w", err)
	}

	caps := w.GetCapabilities()

	preprocessorFP, err := d.preprocessorFingerprint(programPath, resolvedArgs, env, w)
	if err != nil {
		return 0, fmt.Errorf("preprocessor fingerprint: %w", err)
	}

	buildFiles := w.GetBuildFiles(resolvedArgs)
	expectedFiles := toExpectedFiles(buildFiles)

	var directFP hash.Fingerprint
	directModeActive := false
	if HasCapability(caps, CapabilityDirectMode) {
		if _, ok := w.(DirectModeSource); ok {
			directFP, err = d.directFingerprint(programPath, resolvedArgs, env, w)
			if err != nil {
				return 0, fmt.Errorf("direct fingerprint: %w", err)
			}
			directModeActive = true

			result, stdout, stderr, lookupErr := d.facade.LookupDirect(directFP, expectedFiles, allowHardLinks, createTargetDirs)
			if lookupErr != nil {
				return 0, lookupErr
			}
			if result.Hit {
				os.Stdout.Write(stdout)
				os.Stderr.Write(stderr)
				return result.ReturnCode, nil
			}
		}
	}

	result, stdout, stderr, err := d.facade.Lookup(preprocessorFP, expectedFiles, allowHardLinks, createTargetDirs)
	if err != nil {
		return 0, err
	}
	if result.Hit {
		os.Stdout.Write(stdout)
		os.Stderr.Write(stderr)
		return result.ReturnCode, nil
	}

	res, runErr := d.run(programPath, resolvedArgs, env)
	if runErr != nil {
		return 0, cacheerr.New(cacheerr.ToolExec, runErr)
	}
	os.Stdout.Write(res.Stdout)
	os.Stderr.Write(res.Stderr)

	// Non-zero exit codes are returned verbatim and never cached: memorizing a
	// transient failure would be worse than re-running the tool next time.
	if res.ReturnCode != 0 {
		return res.ReturnCode, nil
	}

	entry := &store.CacheEntry{
		FileIDs:    presentFileIDs(buildFiles),
		Stdout:     res.Stdout,
		Stderr:     res.Stderr,
		ReturnCode: res.ReturnCode,
	}
	if err := d.facade.Add(preprocessorFP, entry, expectedFiles, allowHardLinks); err != nil {
		logrus.WithError(err).Warn("driver: add failed")
	}

	if directModeActive {
		if dms, ok := w.(DirectModeSource); ok {
			implicitInputs, err := dms.GetDirectHashInputs(resolvedArgs)
			if err != nil {
				logrus.WithError(err).Warn("driver: get_direct_hash_inputs failed, skipping add_direct")
			} else {
				d.facade.AddDirect(directFP, preprocessorFP, implicitInputs)
			}
		}
	}

	return res.ReturnCode, nil
}

// preprocessorFingerprint hashes, in order, the preprocessed source, the
// space-joined relevant arguments, each relevant env var sorted by name, and the
// program id. The order is part of the contract: changing it invalidates every
// existing cache entry.
func (d *Driver) preprocessorFingerprint(programPath string, args, env []string, w Wrapper) (hash.Fingerprint, error) {
	preprocessed, err := w.PreprocessSource(args)
	if err != nil {
		return hash.Fingerprint{}, err
	}

	relevantArgs := strings.Join(w.GetRelevantArguments(args), " ")

	programID, err := w.GetProgramID(programPath)
	if err != nil {
		return hash.Fingerprint{}, err
	}

	h := hash.New()
	h.Update([]byte(preprocessed))
	h.Update([]byte(relevantArgs))
	hashSortedEnv(h, w.GetRelevantEnvVars(env))
	h.Update([]byte(programID))
	return h.Final(), nil
}

// directFingerprint hashes the unpreprocessed command, environment, and program id —
// without the preprocessor output — so it can be computed and checked without running
// the preprocessor at all.
func (d *Driver) directFingerprint(programPath string, args, env []string, w Wrapper) (hash.Fingerprint, error) {
	programID, err := w.GetProgramID(programPath)
	if err != nil {
		return hash.Fingerprint{}, err
	}

	h := hash.New()
	h.Update([]byte(strings.Join(args, " ")))
	hashSortedEnv(h, w.GetRelevantEnvVars(env))
	h.Update([]byte(programID))
	return h.Final(), nil
}

func hashSortedEnv(h *hash.Hasher, vars map[string]string) {
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		h.Update([]byte(name))
		h.Update([]byte("="))
		h.Update([]byte(vars[name]))
	}
}

func (d *Driver) run(programPath string, args, env []string) (CommandResult, error) {
	cmd, bufs := d.execCommand(programPath, args, env)

	err := cmd.Run()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return CommandResult{
				Stdout:     bufs.stdout.Bytes(),
				Stderr:     bufs.stderr.Bytes(),
				ReturnCode: exitErr.ExitCode(),
			}, nil
		}
		return CommandResult{}, err
	}

	return CommandResult{
		Stdout:     bufs.stdout.Bytes(),
		Stderr:     bufs.stderr.Bytes(),
		ReturnCode: 0,
	}, nil
}

func toExpectedFiles(buildFiles []BuildFile) []store.ExpectedFile {
	out := make([]store.ExpectedFile, 0, len(buildFiles))
	for _, bf := range buildFiles {
		out = append(out, store.ExpectedFile{SlotID: bf.SlotID, Path: bf.Path, Required: bf.Required})
	}
	return out
}

// presentFileIDs returns the slot_ids of build files that actually exist on disk after
// a successful run; a required file that didn't materialize is simply omitted rather
// than failing the whole operation (the façade's Add will just have fewer file_ids to
// ingest).
func presentFileIDs(buildFiles []BuildFile) []string {
	var ids []string
	for _, bf := range buildFiles {
		if info, err := os.Stat(bf.Path); err == nil && !info.IsDir() {
			ids = append(ids, bf.SlotID)
		}
	}
	return ids
}
