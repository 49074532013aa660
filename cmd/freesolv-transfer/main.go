// Command freesolv-transfer fine-tunes a graph convolutional network on
// the FreeSolv hydration free energy dataset, starting from a checkpoint
// pretrained to predict molecular fingerprints.
package main

import (
	"fmt"
	"log"
	"strings"

	"github.com/iwhite98/ntelligent-Chemistry/internal/dataset"
	"github.com/iwhite98/ntelligent-Chemistry/internal/report"
	"github.com/iwhite98/ntelligent-Chemistry/pkg/gcn"
	"github.com/iwhite98/ntelligent-Chemistry/pkg/train"
)

const (
	dataPath       = "data/freesolv.csv"
	pretrainedPath = "data/gcn_to_fp.ckpt"

	lossPlotPath   = "out/loss.png"
	parityPlotPath = "out/parity.png"
	finetunedPath  = "out/finetuned.ckpt"

	maxAtoms  = 64
	trainFrac = 0.8
)

func main() {
	records, err := dataset.Load(dataPath, maxAtoms)
	if err != nil {
		log.Fatalf("load %s: %v", dataPath, err)
	}
	trainRecords, testRecords := dataset.Split(records, trainFrac)
	fmt.Printf("loaded %d molecules (%d train, %d test)\n", len(records), len(trainRecords), len(testRecords))

	trainSet, err := dataset.New(trainRecords, maxAtoms)
	if err != nil {
		log.Fatalf("build train set: %v", err)
	}
	testSet, err := dataset.New(testRecords, maxAtoms)
	if err != nil {
		log.Fatalf("build test set: %v", err)
	}

	model, err := gcn.New(gcn.NewDefaultConfig())
	if err != nil {
		log.Fatalf("build model: %v", err)
	}

	pretrained, err := gcn.LoadCheckpoint(pretrainedPath)
	if err != nil {
		log.Fatalf("load pretrained checkpoint %s: %v", pretrainedPath, err)
	}
	transferred, err := model.LoadPartial(pretrained)
	if err != nil {
		log.Fatalf("transfer pretrained weights: %v", err)
	}
	fmt.Printf("transferred parameters: %s\n", strings.Join(transferred, ", "))
	model.FreezeConvStack()

	trainer := train.New(model, train.NewDefaultConfig())
	losses, err := trainer.Fit(trainSet)
	if err != nil {
		log.Fatalf("training: %v", err)
	}

	testLoss, err := trainer.Evaluate(testSet)
	if err != nil {
		log.Fatalf("evaluate: %v", err)
	}
	fmt.Println("--------freesolv --------")
	fmt.Println("pre-train : GCN to fp")
	fmt.Printf("test loss : %.6f\n", testLoss)

	predicted, actual, err := trainer.Predictions(testSet)
	if err != nil {
		log.Fatalf("predict: %v", err)
	}
	summary, err := report.Summarize(predicted, actual)
	if err != nil {
		log.Fatalf("summarize: %v", err)
	}
	fmt.Printf("test rmse : %.6f\n", summary.RMSE)
	fmt.Printf("pearson r : %.6f\n", summary.Pearson)

	if err := gcn.SaveCheckpoint(model, finetunedPath); err != nil {
		log.Fatalf("save checkpoint: %v", err)
	}
	if err := report.WriteLossCurve(lossPlotPath, losses); err != nil {
		log.Fatalf("loss plot: %v", err)
	}
	if err := report.WriteParity(parityPlotPath, predicted, actual); err != nil {
		log.Fatalf("parity plot: %v", err)
	}
}
