package policy

// Built-in default deny list. These are the capabilities that are dangerous
// in any deployment: process spawning, dynamic code loading, raw sockets,
// filesystem destruction. An operator can re-enable an entry with an
// explicit allow rule, but absent configuration these always block.

var builtinDenyModules = []string{
	"subprocess",
	"importlib",
	"ctypes",
	"pickle",
	"marshal",
	"shlex",
	"socket",
	"builtins",
	"pty",
}

var builtinDenyFunctions = []string{
	"eval",
	"exec",
	"compile",
	"open",
	"input",
	"exit",
	"quit",
	"__import__",
}

var builtinDenyAttributes = []string{
	"os.system",
	"os.popen",
	"os.exec*",
	"os.spawn*",
	"os.fork",
	"os.kill",
	"os.remove",
	"os.rmdir",
	"os.unlink",
	"subprocess.*",
	"sys.exit",
	"shutil.rmtree",
	"pickle.load",
	"pickle.loads",
}

var builtinDenies = map[Category][]string{
	CategoryModule:    builtinDenyModules,
	CategoryFunction:  builtinDenyFunctions,
	CategoryAttribute: builtinDenyAttributes,
}

// BuiltinDenyPatterns returns a copy of the default deny patterns for a
// category. Exposed so the gateway can report effective policy.
func BuiltinDenyPatterns(cat Category) []string {
	src := builtinDenies[cat]
	out := make([]string, len(src))
	copy(out, src)
	return out
}
