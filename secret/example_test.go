package secret_test

import (
	"context"
	"fmt"
	"os"

	"github.com/jonwraymond/toolquery/secret"
)

func ExampleResolver_Resolve() {
	_ = os.Setenv("EXAMPLE_LUNAR_KEY", "lc-demo")
	defer func() { _ = os.Unsetenv("EXAMPLE_LUNAR_KEY") }()

	r := secret.NewResolver(secret.NewEnvProvider())
	v, err := r.Resolve(context.Background(), "Bearer secretref:env:EXAMPLE_LUNAR_KEY")
	fmt.Println(v, err)
	// Output: Bearer lc-demo <nil>
}
