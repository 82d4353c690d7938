package builderr

// Convenience constructors for the failure kinds of an invocation.

// Declaration reports a malformed scriptclasspath block.
func Declaration(subject, message string) *Error {
	return New(KindDeclaration, subject, message)
}

// Unresolved reports a coordinate or file no repository could provide.
func Unresolved(subject string, cause error) *Error {
	return Wrap(cause, KindUnresolvedDependency, subject, "could not resolve dependency")
}

// Repository reports a repository failure while resolving a coordinate.
func Repository(repo, subject string, cause error) *Error {
	return Wrap(cause, KindRepository, subject, "repository '"+repo+"' failed")
}

// Compilation reports a build-sources compilation failure for a source file.
func Compilation(file string, cause error) *Error {
	return Wrap(cause, KindBuildSrcCompilation, file, "build sources failed to compile")
}

// CacheIO reports a failure reading or writing cached artifacts.
func CacheIO(subject string, cause error) *Error {
	return Wrap(cause, KindCacheIO, subject, "artifact cache operation failed")
}

// Script reports a failure evaluating the body of a build script.
func Script(subject, message string, cause error) *Error {
	return Wrap(cause, KindScript, subject, message)
}

// Settings reports a malformed settings file.
func Settings(subject, message string, cause error) *Error {
	return Wrap(cause, KindSettings, subject, message)
}

// TaskSelection reports a requested task that no project defines.
func TaskSelection(task string) *Error {
	return New(KindTaskSelection, task, "task not found in any project")
}
