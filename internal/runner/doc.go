// Package runner executes external commands synchronously and reports the
// outcome as a value.
//
// Every collaborator the delivery pipeline drives (git, project builders,
// tar) goes through Runner.Execute. stderr is merged into the captured
// output, failures never panic, and callers decide whether a failed step is
// fatal by converting the Result into a typed error with Result.Err.
//
// Process creation sits behind the Executor interface so tests can stub
// collaborators without touching the host.
package runner
