package modelinfo

import "testing"

func TestQuantization(t *testing.T) {
	cases := map[string]string{
		"model-Q4_K_M.gguf":                   "Q4_K_M",
		"model-q4_k_m.gguf":                   "Q4_K_M",
		"llama-3-8b-q4_0.gguf":                "Q4_0",
		"mistral-7b-v0.3-q5_k.gguf":           "Q5_K",
		"model-f16":                           "F16",
		"model-BF16.gguf":                     "BF16",
		"phi-3-mini-4k-iq2_xxs.gguf":          "IQ2_XXS",
		"model-plain":                         "Unknown",
		"meta-llama/Llama-3-8B":               "Unknown",
		"qwen2.5-7b-instruct-q4_k_m.gguf":     "Q4_K_M",
		"deepseek-r1-distill-qwen-7b-fp16":    "FP16",
		"gemma-2-9b-it-Q8_0.gguf":             "Q8_0",
	}
	for input, expected := range cases {
		if got := Quantization(input); got != expected {
			t.Fatalf("Quantization(%q) = %q, want %q", input, got, expected)
		}
	}
}

func TestQuantizationIdempotent(t *testing.T) {
	input := "model-Q4_K_M.gguf"
	first := Quantization(input)
	second := Quantization(input)
	if first != second {
		t.Fatalf("quantization not deterministic: %q vs %q", first, second)
	}
}

func TestShortName(t *testing.T) {
	cases := map[string]string{
		"meta-llama/Llama-3-8B":      "Llama-3-8B",
		"models/gguf/model-q4_0":     "model-q4_0",
		"standalone-model":           "standalone-model",
		"trailing/":                  "trailing",
		"org/family/variant-Q4_K_M":  "variant-Q4_K_M",
	}
	for input, expected := range cases {
		if got := ShortName(input); got != expected {
			t.Fatalf("ShortName(%q) = %q, want %q", input, got, expected)
		}
	}
}

func TestParamSizeB(t *testing.T) {
	cases := map[string]float64{
		"meta-llama/Llama-3-8B":       8,
		"mistral-7b-v0.3-q4_k_m.gguf": 7,
		"phi-3-mini":                  0,
		"qwen2.5-1.5b-instruct":       1.5,
	}
	for input, expected := range cases {
		if got := ParamSizeB(input); got != expected {
			t.Fatalf("ParamSizeB(%q) = %v, want %v", input, got, expected)
		}
	}
}

func TestNormalizeSize(t *testing.T) {
	cases := []struct {
		raw     string
		value   float64
		display string
	}{
		{"8", 8, "8 GB"},
		{"4.7 GB", 4.7, "4.7 GB"},
		{"16gb", 16, "16 GB"},
		{"", 0, "Unknown"},
		{"n/a", 0, "Unknown"},
		{"-3", 0, "Unknown"},
	}
	for _, tc := range cases {
		value, display := NormalizeSize(tc.raw)
		if value != tc.value || display != tc.display {
			t.Fatalf("NormalizeSize(%q) = (%v, %q), want (%v, %q)", tc.raw, value, display, tc.value, tc.display)
		}
	}
}
