package protocol

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorgonia/nnviz/encoding/frame"
	"github.com/gorgonia/nnviz/engine"
	"github.com/gorgonia/nnviz/network"
	"github.com/gorgonia/nnviz/report"
	"github.com/pkg/errors"
)

type Command interface {
	Do(id int, args []string, e *Engine) (int, string, error)
}

type stdlib func(e *Engine) string

type stdlib2 func(e *Engine, args []string) (string, error)

func (f stdlib) Do(id int, args []string, e *Engine) (int, string, error) {
	str := f(e)
	return id, str, nil
}

func (f stdlib2) Do(id int, args []string, e *Engine) (int, string, error) {
	str, err := f(e, args)
	return id, str, err
}

func protocolVersion(e *Engine) string { return "1" }
func name(e *Engine) string            { return e.name }
func version(e *Engine) string         { return e.version }

func listCommands(e *Engine) string {
	cmds := make([]string, 0, len(e.known))
	for c := range e.known {
		cmds = append(cmds, c)
	}
	sort.Strings(cmds)
	return strings.Join(cmds, "\n")
}

func quit(e *Engine) string { e.quit = true; return "" }

func knownCommand(e *Engine, args []string) (string, error) {
	if len(args) == 0 {
		return "", errors.New("Not enough arguments for \"known_command\"")
	}
	if _, ok := e.known[args[0]]; ok {
		return "true", nil
	}
	return "false", nil
}

/* argument parsing */

func argInt(cmd string, args []string, i int) (int, error) {
	if len(args) <= i {
		return 0, errors.Errorf("Not enough arguments for %q", cmd)
	}
	n, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, errors.WithMessagef(err, "Unable to parse argument %d of %v", i+1, cmd)
	}
	return n, nil
}

func argFloat(cmd string, args []string, i int) (float32, error) {
	if len(args) <= i {
		return 0, errors.Errorf("Not enough arguments for %q", cmd)
	}
	f, err := strconv.ParseFloat(args[i], 32)
	if err != nil {
		return 0, errors.WithMessagef(err, "Unable to parse argument %d of %v", i+1, cmd)
	}
	return float32(f), nil
}

func argLayer(cmd string, args []string) (string, error) {
	if len(args) == 0 {
		return "", errors.Errorf("Not enough arguments for %q", cmd)
	}
	return strings.ToUpper(args[0]), nil
}

func ack(ok bool) string {
	if ok {
		return ""
	}
	return Ignored
}

/* topology and parameters */

func inputCount(e *Engine, args []string) (string, error) {
	n, err := argInt("input_count", args, 0)
	if err != nil {
		return "", err
	}
	return ack(e.d.SetInputCount(n)), nil
}

func addLayer(e *Engine) string {
	if !e.d.AddLayer() {
		return Ignored
	}
	ls := e.d.Layers()
	return ls[len(ls)-1].ID
}

func removeLayer(e *Engine, args []string) (string, error) {
	id, err := argLayer("remove_layer", args)
	if err != nil {
		return "", err
	}
	return ack(e.d.RemoveLayer(id)), nil
}

func layerNodes(e *Engine, args []string) (string, error) {
	id, err := argLayer("layer_nodes", args)
	if err != nil {
		return "", err
	}
	n, err := argInt("layer_nodes", args, 1)
	if err != nil {
		return "", err
	}
	return ack(e.d.SetLayerNodes(id, n)), nil
}

type indexedSetter func(i int, v float32) bool

func indexed(cmd string, set func(e *Engine) indexedSetter) stdlib2 {
	return func(e *Engine, args []string) (string, error) {
		i, err := argInt(cmd, args, 0)
		if err != nil {
			return "", err
		}
		v, err := argFloat(cmd, args, 1)
		if err != nil {
			return "", err
		}
		return ack(set(e)(i, v)), nil
	}
}

/* training configuration */

func learningRate(e *Engine, args []string) (string, error) {
	lr, err := argFloat("learning_rate", args, 0)
	if err != nil {
		return "", err
	}
	if !e.d.SetLearningRate(lr) {
		return Ignored, nil
	}
	return fmt.Sprintf("%v", e.d.Config().LearningRate), nil
}

func target(e *Engine, args []string) (string, error) {
	y, err := argFloat("target", args, 0)
	if err != nil {
		return "", err
	}
	return ack(e.d.SetTargetY(y)), nil
}

func maxEpochs(e *Engine, args []string) (string, error) {
	n, err := argInt("max_epochs", args, 0)
	if err != nil {
		return "", err
	}
	if !e.d.SetMaxEpochs(n) {
		return Ignored, nil
	}
	return strconv.Itoa(e.d.Config().MaxEpochs), nil
}

func fanOut(e *Engine, args []string) (string, error) {
	if len(args) == 0 {
		return e.d.Config().FanOut.String(), nil
	}
	f, ok := engine.ParseFanOut(args[0])
	if !ok {
		return "", errors.Errorf("Unknown fan out %q", args[0])
	}
	return ack(e.d.SetFanOut(f)), nil
}

/* run control */

// transition describes the in-flight transition: its token, phase and layer.
func transition(e *Engine) string {
	return fmt.Sprintf("%d %v %d", e.d.Transition(), e.d.Phase(), e.d.CurrentLayer())
}

func start(e *Engine) string {
	if !e.d.Start() {
		return Ignored
	}
	return transition(e)
}

// done acknowledges the finished layer transition with the given token. A token is only consumed once.
func done(e *Engine, args []string) (string, error) {
	if len(args) == 0 {
		return "", errors.New("Not enough arguments for \"done\"")
	}
	n, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return "", errors.WithMessage(err, "Unable to parse transition")
	}
	if !e.d.NotifyLayerTransitionComplete(network.Transition(n)) {
		return Ignored, nil
	}
	return transition(e), nil
}

func end(e *Engine) string { e.d.End(); return "" }

func reset(e *Engine) string { return ack(e.d.Reset()) }

/* pacing */

func ms(d time.Duration) string { return strconv.FormatInt(d.Milliseconds(), 10) }

func faster(e *Engine) string { e.d.Faster(); return ms(e.d.TickDelay()) }
func slower(e *Engine) string { e.d.Slower(); return ms(e.d.TickDelay()) }

func delay(e *Engine, args []string) (string, error) {
	if len(args) > 0 {
		n, err := argInt("delay", args, 0)
		if err != nil {
			return "", err
		}
		e.d.SetTickDelay(time.Duration(n) * time.Millisecond)
	}
	return ms(e.d.TickDelay()), nil
}

/* introspection */

func showstate(e *Engine) string { return fmt.Sprintf("\n%v\n", e.d) }

func journal(e *Engine) string {
	var buf bytes.Buffer
	e.d.Journal(&buf)
	return "\n" + strings.TrimRight(buf.String(), "\n")
}

func table(e *Engine) (string, error) {
	var buf bytes.Buffer
	if err := report.WriteTable(&buf, e.d.Records(), e.Thresholds); err != nil {
		return "", err
	}
	s := "\n" + strings.TrimRight(buf.String(), "\n")
	if r, ok := e.d.Latest(); ok {
		s += fmt.Sprintf("\n%v", e.Thresholds.Classify(r.Loss))
	}
	return s, nil
}

// chart renders the loss chart of the training log as a PNG data URI.
func chart(e *Engine) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, frame.RenderLossChart(e.d.Records())); err != nil {
		return "", errors.WithStack(err)
	}
	return dataURIPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

const dataURIPrefix = "data:image/png;base64,"

func dot(e *Engine) (string, error) {
	s, err := e.d.Dot()
	if err != nil {
		return "", err
	}
	return "\n" + strings.TrimRight(s, "\n"), nil
}

func csv(e *Engine) (string, error) {
	var buf bytes.Buffer
	if err := e.d.WriteCSV(&buf); err != nil {
		return "", err
	}
	return "\n" + strings.TrimRight(buf.String(), "\n"), nil
}

func snapshot(e *Engine) (string, error) {
	bs, err := json.Marshal(e.d.Snapshot())
	if err != nil {
		return "", errors.WithStack(err)
	}
	return string(bs), nil
}

func verify(e *Engine) (string, error) {
	gt, err := e.d.Verify()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("predicted %.6f loss %.6f dw %.6f db %.6f", gt.Predicted, gt.Loss, gt.WeightGrads, gt.BiasGrads), nil
}

// errCmd is a command that takes no arguments but may fail.
type errCmd func(e *Engine) (string, error)

func (f errCmd) Do(id int, args []string, e *Engine) (int, string, error) {
	str, err := f(e)
	return id, str, err
}

func StandardLib() map[string]Command {
	return map[string]Command{
		"protocol_version": stdlib(protocolVersion),
		"name":             stdlib(name),
		"version":          stdlib(version),
		"list_commands":    stdlib(listCommands),
		"quit":             stdlib(quit),
		"known_command":    stdlib2(knownCommand),

		// setup
		"input_count":   stdlib2(inputCount),
		"add_layer":     stdlib(addLayer),
		"remove_layer":  stdlib2(removeLayer),
		"layer_nodes":   stdlib2(layerNodes),
		"weight":        indexed("weight", func(e *Engine) indexedSetter { return e.d.SetWeight }),
		"bias":          indexed("bias", func(e *Engine) indexedSetter { return e.d.SetBias }),
		"input":         indexed("input", func(e *Engine) indexedSetter { return e.d.SetInputValue }),
		"learning_rate": stdlib2(learningRate),
		"target":        stdlib2(target),
		"max_epochs":    stdlib2(maxEpochs),
		"fan_out":       stdlib2(fanOut),

		// run
		"start": stdlib(start),
		"done":  stdlib2(done),
		"end":   stdlib(end),
		"reset": stdlib(reset),

		// pacing
		"faster": stdlib(faster),
		"slower": stdlib(slower),
		"delay":  stdlib2(delay),

		// introspection
		"showstate": stdlib(showstate),
		"log":       stdlib(journal),
		"table":     errCmd(table),
		"chart":     errCmd(chart),
		"dot":       errCmd(dot),
		"csv":       errCmd(csv),
		"snapshot":  errCmd(snapshot),
		"verify":    errCmd(verify),
	}
}
