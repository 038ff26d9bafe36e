// Оффлайн-фиттер калибровки: по размеченным исходам сделок (сырая
// вероятность, label 0/1) подбирает логистическую поправку {a, b} и пишет
// её в файл, который предиктор перечитывает на лету.
package main

import (
	"bufio"
	"fmt"
	"math"
	"os"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type sample struct {
	RawProbability float64 `json:"raw_probability"`
	Label          int     `json:"label"`
}

type model struct {
	Type string  `json:"type"`
	A    float64 `json:"a"`
	B    float64 `json:"b"`
}

func loadSamples(path string) ([]sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open samples")
	}
	defer func() {
		_ = f.Close()
	}()

	var out []sample
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var s sample
		if err := sonic.Unmarshal(line, &s); err != nil {
			return nil, errors.Wrap(err, "parse sample line")
		}
		if s.RawProbability > 0 && s.RawProbability < 1 {
			out = append(out, s)
		}
	}
	return out, sc.Err()
}

// fit — логистическая регрессия на logit(p) градиентным спуском.
func fit(samples []sample, iters int, lr float64) model {
	a, b := 0.0, 1.0
	n := float64(len(samples))
	for i := 0; i < iters; i++ {
		gradA, gradB := 0.0, 0.0
		for _, s := range samples {
			x := math.Log(s.RawProbability / (1 - s.RawProbability))
			p := 1 / (1 + math.Exp(-(a + b*x)))
			diff := p - float64(s.Label)
			gradA += diff
			gradB += diff * x
		}
		a -= lr * gradA / n
		b -= lr * gradB / n
	}
	return model{Type: "logistic", A: a, B: b}
}

func run() error {
	viper.SetConfigName(".calibrate")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.SetDefault("samples", "data/labels.jsonl")
	viper.SetDefault("out", "data/calibration.json")
	viper.SetDefault("iters", 2000)
	viper.SetDefault("lr", 0.05)
	viper.SetDefault("min_samples", 50)
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return errors.Wrap(err, "read config")
		}
	}

	samples, err := loadSamples(viper.GetString("samples"))
	if err != nil {
		return err
	}
	if len(samples) < viper.GetInt("min_samples") {
		return fmt.Errorf("not enough samples: %d < %d", len(samples), viper.GetInt("min_samples"))
	}

	m := fit(samples, viper.GetInt("iters"), viper.GetFloat64("lr"))
	bs, err := sonic.Marshal(m)
	if err != nil {
		return errors.Wrap(err, "marshal model")
	}
	if err := os.WriteFile(viper.GetString("out"), bs, 0o644); err != nil {
		return errors.Wrap(err, "write model")
	}
	fmt.Printf("calibration written: a=%.4f b=%.4f samples=%d\n", m.A, m.B, len(samples))
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
