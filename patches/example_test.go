package patches_test

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sokinpui/patches/patches"
)

func ExampleApplyPatches() {
	root, err := os.MkdirTemp("", "patches-example")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(root)

	diff := filepath.Join(root, "0001-add-hello.diff")
	content := "--- /dev/null\n+++ b/hello.txt\n@@ -0,0 +1 @@\n+hello\n"
	if err := os.WriteFile(diff, []byte(content), 0o644); err != nil {
		panic(err)
	}

	fmt.Println(patches.ApplyPatches(root, []string{diff}))

	data, _ := os.ReadFile(filepath.Join(root, "hello.txt"))
	fmt.Print(string(data))

	// A second run fails: the file already exists.
	fmt.Println(patches.ApplyPatches(root, []string{diff}) != nil)

	// Output:
	// <nil>
	// hello
	// true
}
