package extract

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixturePath = "../../fixtures/tests/pmc/pmc_results_4242.txt"

func record(label, seconds string) string {
	return "kernel-name:\"" + label + "\"\n  grid-size(1, 1, 1)\n  kernel time " + seconds + "(s)\n"
}

func TestCompile(t *testing.T) {
	t.Run("empty pattern", func(t *testing.T) {
		_, err := Compile("   ")
		assert.ErrorIs(t, err, ErrEmptyPattern)
	})

	t.Run("wildcard matches shared literal prefix", func(t *testing.T) {
		k := MustCompile("Cijk_Ailk_Bljk*")
		assert.True(t, k.Matches("Cijk_Ailk_Bljk_foo"))
		assert.True(t, k.Matches("Cijk_Ailk_Bljk"))
		assert.False(t, k.Matches("Cijk_Ailk_X"))
		assert.False(t, k.Matches("xCijk_Ailk_Bljk"))
	})

	t.Run("regex metacharacters are literal", func(t *testing.T) {
		k := MustCompile("gemm<64, 64>(a.b)+")
		assert.True(t, k.Matches("gemm<64, 64>(a.b)+"))
		assert.False(t, k.Matches("gemm<64, 64>(aXb)"))
	})

	t.Run("wildcards inside the pattern", func(t *testing.T) {
		k := MustCompile("*gemm*")
		assert.True(t, k.Matches("lightop::gemm_fp16_kernel"))
		assert.True(t, k.Matches("gemm"))
		assert.False(t, k.Matches("Cijk_Ailk_Bljk"))
	})

	t.Run("pattern is kept as label", func(t *testing.T) {
		k := MustCompile(" gemm_x ")
		assert.Equal(t, "gemm_x", k.Pattern())
		assert.Equal(t, "gemm_x", k.String())
	})
}

func TestExtract(t *testing.T) {
	t.Run("no occurrence returns empty slice", func(t *testing.T) {
		times := Extract("HIP_PROF:process id '1'\nnothing here\n", MustCompile("gemm_x"))
		assert.NotNil(t, times)
		assert.Empty(t, times)
	})

	t.Run("empty text", func(t *testing.T) {
		assert.Empty(t, Extract("", MustCompile("*")))
	})

	t.Run("all matching records are returned in order", func(t *testing.T) {
		text := record("gemm_x", "1.0") + record("Cijk_y", "0.5") + record("gemm_x", "2.0") + record("gemm_x", "3.0")
		assert.Equal(t, []float64{1.0, 2.0, 3.0}, Extract(text, MustCompile("gemm_x")))
		assert.Equal(t, []float64{0.5}, Extract(text, MustCompile("Cijk_y")))
	})

	t.Run("duration on the following line", func(t *testing.T) {
		text := "kernel-name:\"gemm_x\"\n  kernel time\n   4.25(s)\n"
		assert.Equal(t, []float64{4.25}, Extract(text, MustCompile("gemm_x")))
	})

	t.Run("exponent notation", func(t *testing.T) {
		text := record("gemm_x", "1.5e-05")
		assert.Equal(t, []float64{1.5e-05}, Extract(text, MustCompile("gemm_x")))
	})

	t.Run("record without duration does not borrow the next one", func(t *testing.T) {
		text := "kernel-name:\"gemm_x\"\n  grid-size(1, 1, 1)\n" + record("other", "9.0")
		assert.Empty(t, Extract(text, MustCompile("gemm_x")))
		assert.Equal(t, []float64{9.0}, Extract(text, MustCompile("other")))
	})

	t.Run("wildcard does not span records", func(t *testing.T) {
		text := record("Cijk_Ailk_X", "7.0") + record("Cijk_Ailk_Bljk_foo", "0.25")
		assert.Equal(t, []float64{0.25}, Extract(text, MustCompile("Cijk_Ailk_Bljk*")))
	})

	t.Run("unterminated label is ignored", func(t *testing.T) {
		text := "kernel-name:\"gemm_x kernel time 1.0(s)"
		assert.Empty(t, Extract(text, MustCompile("gemm_x*")))
	})
}

func TestExtractFixture(t *testing.T) {
	data, err := os.ReadFile(fixturePath)
	require.NoError(t, err)
	text := string(data)

	kernels, err := CompileAll([]string{"Cijk_Ailk_Bljk*", "*gemm*", "missing_kernel"})
	require.NoError(t, err)

	all := ExtractAll(text, kernels)
	assert.Equal(t, []float64{0.000512, 0.000498}, all["Cijk_Ailk_Bljk*"])
	assert.Equal(t, []float64{0.000489}, all["*gemm*"])
	assert.Empty(t, all["missing_kernel"])

	records := Records(text)
	require.Len(t, records, 3)
	assert.Equal(t, "lightop::gemm_fp16_kernel<64, 64, 32>", records[1].Label)
}

func TestSelect(t *testing.T) {
	_, ok := Select(nil, First)
	assert.False(t, ok)

	v, ok := Select([]float64{3, 1, 2}, First)
	assert.True(t, ok)
	assert.Equal(t, 3.0, v)

	v, ok = Select([]float64{3, 1, 2}, Min)
	assert.True(t, ok)
	assert.Equal(t, 1.0, v)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, First, p)

	p, err = ParsePolicy("min")
	require.NoError(t, err)
	assert.Equal(t, Min, p)

	_, err = ParsePolicy("median")
	assert.Error(t, err)
}

func TestCompileAll(t *testing.T) {
	t.Run("repeated patterns are kept once", func(t *testing.T) {
		kernels, err := CompileAll([]string{"gemm_x", "Cijk_y*", " gemm_x", "Cijk_y*"})
		require.NoError(t, err)
		require.Len(t, kernels, 2)
		assert.Equal(t, "gemm_x", kernels[0].Pattern())
		assert.Equal(t, "Cijk_y*", kernels[1].Pattern())
	})

	t.Run("bad pattern fails the list", func(t *testing.T) {
		_, err := CompileAll([]string{"gemm_x", " "})
		assert.ErrorIs(t, err, ErrEmptyPattern)
	})

	t.Run("unique keeps first position", func(t *testing.T) {
		a, b := MustCompile("a"), MustCompile("b")
		assert.Equal(t, []Kernel{b, a}, Unique([]Kernel{b, a, b, a}))
	})
}

func TestParseKernelList(t *testing.T) {
	t.Run("trims and skips comments", func(t *testing.T) {
		patterns, err := ParseKernelList(strings.NewReader("# header\n  Cijk_Ailk_Bljk*  \n\n*gemm*\n"))
		require.NoError(t, err)
		assert.Equal(t, []string{"Cijk_Ailk_Bljk*", "*gemm*"}, patterns)
	})

	t.Run("empty list is an error", func(t *testing.T) {
		_, err := ParseKernelList(strings.NewReader("\n   \n# only comments\n"))
		assert.ErrorIs(t, err, ErrEmptyKernelList)
	})

	t.Run("load from file", func(t *testing.T) {
		kernels, err := LoadKernelList("../../fixtures/tests/kernel_list.txt")
		require.NoError(t, err)
		require.Len(t, kernels, 2)
		assert.Equal(t, "Cijk_Ailk_Bljk*", kernels[0].Pattern())
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadKernelList("does-not-exist.txt")
		assert.Error(t, err)
	})
}
