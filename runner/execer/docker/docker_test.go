package docker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvList(t *testing.T) {
	env := envList(map[string]string{"YGRID_JOB_ID": "0000000100000000", "A": "b=c"})
	assert.Equal(t, []string{"A=b=c", "YGRID_JOB_ID=0000000100000000"}, env)
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "0123456789ab", shortID("0123456789abcdef"))
	assert.Equal(t, "abc", shortID("abc"))
}
