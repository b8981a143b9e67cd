// Command ochim runs the five-fold cross-validated evaluation of the chills
// detector: it combines the fold partitions, trains and calibrates one model
// per iteration, sweeps decision thresholds over the validation and test
// folds, and aggregates the test evaluations into a results file.
package main
